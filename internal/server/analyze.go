package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/export"
	"github.com/joseph-ayodele/order-analyzer/internal/uploads"
)

// multipartOverhead is allowed on top of the file limit for boundaries and headers.
const multipartOverhead = 64 << 10

func (s *Server) analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	fh, err := c.FormFile(constants.UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.renderError(c, s.tooLarge())
			return
		}
		s.renderError(c, common.NewAppErrorWithDetails(common.CodeUpload, "No file uploaded",
			fmt.Sprintf("expected a multipart field %q", constants.UploadField), err))
		return
	}
	if !constants.IsPDFMediaType(fh.Header.Get("Content-Type")) {
		s.renderError(c, common.NewAppErrorWithDetails(common.CodeUpload, "Only PDF files are allowed",
			"received content type "+strconv.Quote(fh.Header.Get("Content-Type")), common.ErrInvalidInput))
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		s.renderError(c, s.tooLarge())
		return
	}

	pdf, err := s.readUpload(fh)
	if err != nil {
		s.renderError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.analyzer.Analyze(ctx, pdf)
	if err != nil {
		s.renderError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "xlsx") {
		if s.exporter == nil {
			s.renderError(c, common.NewAppError(common.CodeInternal, "Export is not available", nil))
			return
		}
		b, err := s.exporter.ResultXLSX(ctx, res)
		if err != nil {
			s.renderError(c, common.NewAppError(common.CodeInternal, "Failed to export result", err))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+xlsxName(fh.Filename)+`"`)
		c.Data(http.StatusOK, export.ContentType, b)
		return
	}
	c.JSON(http.StatusOK, res)
}

// readUpload spools the part to disk and reads it back; the spooled file is
// removed before returning on every path.
func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, common.NewAppError(common.CodeUpload, "No file uploaded", err)
	}
	defer src.Close()

	f, err := s.spool.Save(src, fh.Filename)
	if err != nil {
		if errors.Is(err, uploads.ErrTooLarge) {
			return nil, s.tooLarge()
		}
		return nil, common.NewAppError(common.CodeInternal, "Could not store upload", err)
	}
	defer f.Release()

	b, err := f.Bytes()
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "Could not read upload", err)
	}
	return b, nil
}

func (s *Server) tooLarge() error {
	return common.NewAppErrorWithDetails(common.CodeUpload, "File too large",
		fmt.Sprintf("maximum upload size is %d bytes", s.cfg.MaxUploadBytes), common.ErrInvalidInput)
}

func xlsxName(pdfName string) string {
	base := strings.TrimSuffix(pdfName, ".pdf")
	base = strings.TrimSuffix(base, ".PDF")
	base = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '/' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "" {
		base = "analyse"
	}
	return base + ".xlsx"
}

// renderError writes the {error, details} body with a 400 or 500 status.
func (s *Server) renderError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	summary, details := common.Describe(err)
	if status >= 500 {
		s.logger.Error("http.analyze.failed",
			"req_id", common.RequestIDFromContext(c.Request.Context()),
			"code", common.CodeOf(err),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": summary, "details": details})
}

func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run log is disabled", "details": "set ANALYSIS_DB_PATH to enable it"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.renderError(c, common.NewAppError(common.CodeInternal, "Failed to list runs", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
