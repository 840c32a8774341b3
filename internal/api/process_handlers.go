package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Armour007/docproc-backend/internal/processor"
)

const processorBreaker = "processor"

// errStatus pairs a validation error with the status it maps to.
type errStatus struct {
	status int
	err    error
}

func (e *errStatus) Error() string { return e.err.Error() }

// ProcessHandler validates the body for op and forwards it upstream.
func ProcessHandler(op processor.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProcessRequest
		if !bindJSON(c, &req, "Invalid request body") {
			return
		}
		body, verr := req.upstreamBody(op)
		if verr != nil {
			c.JSON(verr.status, gin.H{"error": verr.Error()})
			return
		}
		forward(c, op, body)
	}
}

// upstreamBody normalises the image and checks the fields op needs.
func (r ProcessRequest) upstreamBody(op processor.Operation) (map[string]any, *errStatus) {
	doc, err := processor.DecodeDocument(r.Image)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, processor.ErrUnsupportedType) {
			status = http.StatusUnsupportedMediaType
		}
		return nil, &errStatus{status, err}
	}
	body := map[string]any{"image": doc.Base64}

	var docType string
	if r.DocumentType != nil && strings.TrimSpace(*r.DocumentType) != "" {
		dt, ok := processor.LookupDocumentType(*r.DocumentType)
		if !ok {
			return nil, &errStatus{http.StatusBadRequest, errors.New("documentType is not a known document type")}
		}
		docType = dt.Code
	}

	switch op {
	case processor.OpClassify:
		if docType == "" {
			return nil, &errStatus{http.StatusBadRequest, errors.New("documentType is required")}
		}
		body["documentType"] = docType
	case processor.OpExtract, processor.OpExtractValidate:
		trimmed := bytes.TrimSpace(r.AnalysisResult)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil, &errStatus{http.StatusBadRequest, errors.New("analysisResult is required")}
		}
		body["analysisResult"] = r.AnalysisResult
		if docType != "" {
			body["documentType"] = docType
		}
	}
	return body, nil
}

// forward calls the processor behind the breaker and relays its answer.
func forward(c *gin.Context, op processor.Operation, body any) {
	if deps.Processor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document processor not configured"})
		return
	}
	br := GetBreaker(processorBreaker)
	if !br.Allow() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document processor temporarily unavailable"})
		return
	}

	start := time.Now()
	res, err := deps.Processor.Call(c.Request.Context(), op, body)
	dur := time.Since(start)
	metricOp := "processor_" + string(op)

	if err != nil || res.Status >= http.StatusInternalServerError {
		br.ReportFailure()
		RecordExternalOp(metricOp, dur, false)
		fields := []zap.Field{zap.String("op", string(op)), zap.Duration("duration", dur)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", res.Status))
		}
		zap.L().Warn("document processor call failed", fields...)
		c.JSON(http.StatusBadGateway, gin.H{"error": "document processor unavailable"})
		return
	}
	br.ReportSuccess()
	RecordExternalOp(metricOp, dur, true)

	status := http.StatusOK
	if res.Status >= http.StatusBadRequest {
		status = res.Status
	}
	c.Data(status, "application/json; charset=utf-8", res.Body)
}
