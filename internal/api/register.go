package api

import "net/http"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    User   `json:"user"`
}

func (a *API) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := RegisterRequest{}
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}

		identity, err := a.service.Register(r.Context(), req.Email, req.Password, req.Name)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}

		returnJsonStatus(http.StatusCreated, &RegisterResponse{
			Success: true,
			Message: "User created successfully",
			User:    userOf(identity),
		}, w)
	}
}
