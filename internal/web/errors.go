package web

import (
	"errors"
	"net/http"

	"icsview/internal/ics"
	appLog "icsview/internal/log"
	"icsview/internal/urlguard"
)

type upstreamErrResp struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

type internalErrResp struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// writeLoadError maps a retrieval failure to its HTTP response:
//
//	guard rejection          400 {"error": reason}
//	unexpected content type  400 {"error": "Content-Type non sembra un ICS: ..."}
//	upstream status known    502 {"error": "Failed fetching remote ICS", "status": n}
//	anything else            500 {"error": "Failed to fetch or parse ICS", "details": msg}
func writeLoadError(w http.ResponseWriter, err error) {
	var gerr *urlguard.Error
	if errors.As(err, &gerr) {
		writeError(w, http.StatusBadRequest, gerr.Message)
		return
	}

	var ferr *ics.FetchError
	if errors.As(err, &ferr) {
		if ferr.Kind == ics.UnexpectedContentType {
			writeError(w, http.StatusBadRequest, "Content-Type non sembra un ICS: "+ferr.ContentType)
			return
		}
		if ferr.Status != 0 {
			appLog.Info("upstream calendar fetch failed", "kind", string(ferr.Kind), "status", ferr.Status)
			writeJSON(w, http.StatusBadGateway, upstreamErrResp{
				Error:  "Failed fetching remote ICS",
				Status: ferr.Status,
			})
			return
		}
	}

	appLog.Error("calendar fetch failed", err)
	writeJSON(w, http.StatusInternalServerError, internalErrResp{
		Error:   "Failed to fetch or parse ICS",
		Details: err.Error(),
	})
}

// writeParamError answers 400 with the user-facing text of a *ParamError.
func writeParamError(w http.ResponseWriter, err error) {
	var perr *ParamError
	if errors.As(err, &perr) {
		writeError(w, http.StatusBadRequest, perr.Message())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
