package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidID          = "invalid_id"
	codeMissingUser        = "missing_user"
	codeOrderNotFound      = "order_not_found"
	codeItemNotFound       = "item_not_found"
	codeListingMismatch    = "listing_mismatch"
	codeNotSeller          = "not_seller"
	codeNotBuyer           = "not_buyer"
	codeOrderNotPaid       = "order_not_paid"
	codeOrderNotShipped    = "order_not_shipped"
	codeAlreadyShipped     = "already_shipped"
	codeInvalidSignature   = "invalid_signature"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
