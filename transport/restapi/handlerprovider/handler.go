package handlerprovider

import (
	"fmt"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/pkg/respbuilder"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

type ListReqQueryParam struct {
	Name string `schema:"name"`
}

type ListResp struct {
	Items []config.Provider `json:"items"`
}

// List returns the relay presets, optionally only the one named in ?name=.
func (h *Handler) List() func(http.ResponseWriter, *http.Request) {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		query := ListReqQueryParam{}
		queryDec := schema.NewDecoder()
		queryDec.IgnoreUnknownKeys(true)
		err := queryDec.Decode(&query, r.URL.Query())
		if err != nil {
			err = fmt.Errorf("failed decode query params: %w", err)
			resp := respbuilder.Error(ctx, respbuilder.ErrValidation, err)
			respbuilder.WriteJSON(http.StatusBadRequest, w, r, resp)
			return
		}

		items := make([]config.Provider, 0)
		for _, p := range config.Providers() {
			if query.Name != "" && p.Name != query.Name {
				continue
			}

			items = append(items, p)
		}

		if query.Name != "" && len(items) == 0 {
			err = fmt.Errorf("provider %q not found", query.Name)
			resp := respbuilder.Error(ctx, respbuilder.ErrResourceNotFound, err)
			respbuilder.WriteJSON(http.StatusNotFound, w, r, resp)
			return
		}

		resp := respbuilder.Success(ctx, ListResp{Items: items})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}

	return fn
}
