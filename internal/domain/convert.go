package domain

import (
	"time"

	"github.com/dunamismax/bioconvert/internal/convert"
)

// ResponseTimeLayout is the timestamp format of envelope requesttime and
// responsetime fields.
const ResponseTimeLayout = "2006-01-02T15:04:05.000Z"

type ConvertRequest struct {
	Values           map[string]string `json:"values"`
	SourceFormat     string            `json:"sourceFormat"`
	TargetFormat     string            `json:"targetFormat"`
	SourceParameters map[string]string `json:"sourceParameters,omitempty"`
	TargetParameters map[string]string `json:"targetParameters,omitempty"`
}

func (r ConvertRequest) ToConvert() convert.Request {
	return convert.Request{
		Values:           r.Values,
		SourceFormat:     r.SourceFormat,
		TargetFormat:     r.TargetFormat,
		SourceParameters: r.SourceParameters,
		TargetParameters: r.TargetParameters,
	}
}

type RequestWrapper[T any] struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	RequestTime string `json:"requesttime"`
	Metadata    any    `json:"metadata,omitempty"`
	Request     *T     `json:"request"`
}

type ServiceError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type ResponseWrapper[T any] struct {
	ID           string         `json:"id"`
	Version      string         `json:"version"`
	ResponseTime string         `json:"responsetime"`
	Metadata     any            `json:"metadata"`
	Response     *T             `json:"response"`
	Errors       []ServiceError `json:"errors"`
}

// NewResponse echoes the request id and version and stamps the response time.
func NewResponse[T any](id, version string, now time.Time) ResponseWrapper[T] {
	return ResponseWrapper[T]{
		ID:           id,
		Version:      version,
		ResponseTime: now.UTC().Format(ResponseTimeLayout),
	}
}

// ServiceErrorOf renders any error as the envelope error entry. Errors outside
// the conversion taxonomy are reported as technical.
func ServiceErrorOf(err error) ServiceError {
	kind := convert.KindOf(err)
	message := convert.NewError(kind, nil).Message
	if kind == convert.KindTechnical && err != nil {
		message = err.Error()
	}
	return ServiceError{ErrorCode: kind.Code(), Message: message}
}
