package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/giftcards/internal/exchange"
	"github.com/lumenshop/giftcards/internal/giftcard"
)

// defaultBatchSize bounds the work done per export/import call.
const defaultBatchSize = 200

// ExchangeHandler serves batched CSV export and import.
type ExchangeHandler struct {
	rec *exchange.Reconciler
}

// NewExchangeHandler constructs an ExchangeHandler.
func NewExchangeHandler(rec *exchange.Reconciler) *ExchangeHandler {
	return &ExchangeHandler{rec: rec}
}

// Export returns one CSV page of gift cards. The caller loops, advancing
// offset by batch_size, until is_complete is true.
func (h *ExchangeHandler) Export(c *gin.Context) {
	offset := intQuery(c, "offset", 0)
	batchSize := intQuery(c, "batch_size", defaultBatchSize)

	rows, complete, errExport := h.rec.ExportBatch(c.Request.Context(), offset, batchSize)
	if errExport != nil {
		if errors.Is(errExport, giftcard.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errExport.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if offset == 0 {
		if errHeader := writer.Write(exchange.Columns); errHeader != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
	}
	for _, row := range rows {
		if errRow := writer.Write(row); errRow != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
	}
	writer.Flush()
	if errFlush := writer.Error(); errFlush != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"csv":         buf.String(),
		"rows":        len(rows),
		"offset":      offset,
		"batch_size":  batchSize,
		"is_complete": complete,
	})
}

// Import consumes one batch of rows from an uploaded CSV file. Row failures
// are counted per row and never abort the batch.
func (h *ExchangeHandler) Import(c *gin.Context) {
	offset, batchSize, errParams := importParams(c)
	if errParams != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errParams.Error()})
		return
	}

	fileHeader, errFile := c.FormFile("file")
	if errFile != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, errOpen := fileHeader.Open()
	if errOpen != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer func() { _ = file.Close() }()

	result, errImport := h.rec.ImportBatch(c.Request.Context(), file, offset, batchSize)
	if errImport != nil {
		if errors.Is(errImport, giftcard.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errImport.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rows_imported": result.Imported,
		"failed_rows":   result.Failed,
		"offset":        offset,
		"batch_size":    batchSize,
		"is_complete":   result.Complete,
	})
}

// importParams parses the offset and batch_size form fields.
func importParams(c *gin.Context) (int, int, error) {
	offset := 0
	if raw := strings.TrimSpace(c.PostForm("offset")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed < 0 {
			return 0, 0, errInvalidOffset
		}
		offset = parsed
	}
	batchSize := defaultBatchSize
	if raw := strings.TrimSpace(c.PostForm("batch_size")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			return 0, 0, errInvalidBatchSize
		}
		batchSize = parsed
	}
	return offset, batchSize, nil
}

var (
	errInvalidOffset    = errors.New("invalid offset")
	errInvalidBatchSize = errors.New("invalid batch_size")
)
