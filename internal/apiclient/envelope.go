package apiclient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/Pinash124/bike-hub-sub000/pkg/errors"
	"github.com/Pinash124/bike-hub-sub000/pkg/httpclient"
)

// envelope is the marketplace API response wrapper.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// checkEnvelope validates status and business code and returns the envelope.
func checkEnvelope(resp *Response, operation string, cfg Config) (envelope, error) {
	var env envelope
	if !httpclient.IsSuccess(resp.StatusCode) {
		return env, resp.Err(operation)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return env, apperrors.MalformedResponse(operation + " response is not valid JSON")
	}
	if cfg.CheckSuccessCode && env.Code != nil && *env.Code != cfg.SuccessCode {
		msg := env.Message
		if msg == "" {
			msg = operation + " was rejected"
		}
		return env, &apperrors.AppError{
			Code:    "API_" + strconv.Itoa(*env.Code),
			Message: msg,
			Status:  http.StatusUnprocessableEntity,
			Err:     apperrors.ErrInvalidInput,
		}
	}
	return env, nil
}

// decodeResult checks the envelope and decodes its result into T. A missing
// result is a malformed response.
func decodeResult[T any](resp *Response, operation string, cfg Config) (T, error) {
	var out T
	env, err := checkEnvelope(resp, operation, cfg)
	if err != nil {
		return out, err
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return out, apperrors.MalformedResponse(operation + " response carries no result")
	}
	if err := json.Unmarshal(env.Result, &out); err != nil {
		return out, apperrors.MalformedResponse(operation + " result has an unexpected shape")
	}
	return out, nil
}
