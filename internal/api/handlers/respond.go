package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/coaching"
)

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// jsonError writes err with the status of its kind. Internal errors are
// logged and replaced by a generic message.
func jsonError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(err)
	body := errorBody{Error: publicMessage(err), Kind: string(kind), Detail: apperr.DetailOf(err)}
	if kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
		body.Error = "internal server error"
		body.Detail = ""
	}
	jsonResponse(w, body, status)
}

func publicMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Msg != "" {
			return ae.Msg
		}
		if ae.Err != nil {
			return ae.Err.Error()
		}
		return string(ae.Kind)
	}
	return err.Error()
}

func badRequest(op, msg string) error {
	return apperr.New(apperr.KindValidation, op, msg)
}

// decodeJSON reads one JSON object into dst. Oversized bodies are reported
// as validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Newf(apperr.KindValidation, "handlers.decodeJSON", "request body exceeds %d bytes", tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return badRequest("handlers.decodeJSON", "request body is empty")
		}
		return apperr.Wrap(apperr.KindValidation, "handlers.decodeJSON", err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

const multipartMemory = 32 << 20

// readTextOrAudio accepts either a JSON object of string fields or a
// multipart form with an optional "audio" file part.
func readTextOrAudio(r *http.Request) (map[string]string, coaching.AudioClip, error) {
	const op = "handlers.readTextOrAudio"
	fields := map[string]string{}
	var clip coaching.AudioClip

	if !isMultipart(r) {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
			return nil, clip, apperr.Wrap(apperr.KindValidation, op, err)
		}
		return fields, clip, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, clip, apperr.Wrap(apperr.KindValidation, op, err)
	}
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	file, header, err := r.FormFile("audio")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return fields, clip, nil
	case err != nil:
		return nil, clip, apperr.Wrap(apperr.KindValidation, op, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, clip, apperr.Wrap(apperr.KindValidation, op, err)
	}
	clip = coaching.AudioClip{Data: data, FileName: header.Filename, MimeType: header.Header.Get("Content-Type")}
	return fields, clip, nil
}

// readFilePart returns the first present file among names.
func readFilePart(r *http.Request, names ...string) ([]byte, string, error) {
	const op = "handlers.readFilePart"
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", apperr.Wrap(apperr.KindValidation, op, err)
	}
	for _, name := range names {
		file, header, err := r.FormFile(name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, "", apperr.Wrap(apperr.KindValidation, op, err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", apperr.Wrap(apperr.KindValidation, op, err)
		}
		return data, header.Filename, nil
	}
	return nil, "", apperr.Newf(apperr.KindValidation, op, "multipart field %q is required", names[0])
}
