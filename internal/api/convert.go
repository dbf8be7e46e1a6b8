package api

import (
	"errors"
	"net/http"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/dunamismax/bioconvert/internal/domain"
)

var errMissingRequest = errors.New("request is missing")

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var envelope domain.RequestWrapper[domain.ConvertRequest]
	if err := s.decodeJSON(w, r, &envelope); err != nil {
		status := statusFor(convert.KindInvalidRequest)
		if isBodyTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeConvertError(w, envelope.ID, envelope.Version, status, convert.NewError(convert.KindInvalidRequest, err))
		return
	}
	if envelope.Request == nil {
		err := convert.NewError(convert.KindInvalidRequest, errMissingRequest)
		s.writeConvertError(w, envelope.ID, envelope.Version, statusFor(err.Kind), err)
		return
	}

	req := envelope.Request
	if !s.allow(w, r, len(req.Values)) {
		return
	}

	result, err := s.converter.Convert(r.Context(), req.ToConvert())
	s.metrics.observeConversion(req.SourceFormat, req.TargetFormat, len(req.Values), err)
	if err != nil {
		kind := convert.KindOf(err)
		s.logger.Printf("convert failed source=%s target=%s entries=%d code=%s err=%v",
			req.SourceFormat, req.TargetFormat, len(req.Values), kind.Code(), err)
		s.writeConvertError(w, envelope.ID, envelope.Version, statusFor(kind), err)
		return
	}

	resp := domain.NewResponse[map[string]string](envelope.ID, envelope.Version, s.now())
	resp.Response = &result.Values
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeConvertError(w http.ResponseWriter, id, version string, status int, err error) {
	resp := domain.NewResponse[map[string]string](id, version, s.now())
	resp.Errors = []domain.ServiceError{domain.ServiceErrorOf(err)}
	writeJSON(w, status, resp)
}

// statusFor maps a failure kind to its HTTP status. Envelope problems, technical
// failures and undecodable images are server errors; every other kind is the
// caller's fault.
func statusFor(kind convert.Kind) int {
	switch kind {
	case convert.KindInvalidRequest, convert.KindEmptySource, convert.KindTechnical, convert.KindRasterDecodeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
