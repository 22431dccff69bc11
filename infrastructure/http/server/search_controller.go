package server

import (
	"chatline/contract"
	"chatline/services"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type SearchController struct {
	search services.ISearchService
	auth   contract.IAuthProvider
}

func NewSearchController(search services.ISearchService, auth contract.IAuthProvider) *SearchController {
	return &SearchController{search: search, auth: auth}
}

func (h *SearchController) Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, h.auth)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		hits, err := h.search.Search(c.Request.Context(), user, c.Query("q"), limit)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"hits": nonNil(hits)})
	}
}
