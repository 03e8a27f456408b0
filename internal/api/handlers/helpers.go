package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/middleware"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/utils"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/validator"
)

// maxBodyBytes bounds request bodies; generated prompts are the largest payload
const maxBodyBytes = 1 << 20

// requireUser returns the authenticated user id or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("User not authenticated"))
		return "", false
	}
	return userID, true
}

// decodeAndValidate reads a JSON body into v and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, val *validator.Validator, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return false
	}
	if errs := val.Validate(v); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return false
	}
	return true
}
