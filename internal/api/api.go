// Package api implements a thin gin-gonic/gin HTTP facade over a
// database.Database, grounded on the corpus's REST facade wiring style
// (register handlers on a caller-supplied *gin.Engine, one struct holding
// the domain object).
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridcube/gridcube/internal/pkg/logging"
	"github.com/gridcube/gridcube/pkg/database"
	"github.com/gridcube/gridcube/pkg/gridcube"
)

var log = logging.Log()

// API registers gridcube's read/write/model-introspection handlers on a gin
// engine.
type API struct {
	DB *database.Database
}

// New wires handlers onto r under /api/v1.
func New(db *database.Database, r *gin.Engine) *API {
	a := &API{DB: db}
	r.Use(a.logger)
	v := r.Group("/api/v1")
	v.GET("/dimensions", a.listDimensions)
	v.GET("/cubes", a.listCubes)
	v.GET("/cubes/:cube/cell", a.getCell)
	v.PUT("/cubes/:cube/cell", a.setCell)
	return a
}

func (a *API) logger(c *gin.Context) {
	c.Next()
	log.V(2).Info("api request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
}

func (a *API) listDimensions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dimensions": a.DB.Dimensions()})
}

func (a *API) listCubes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cubes": a.DB.Cubes()})
}

// addressTokens reads the repeated "addr" query parameter, e.g.
// GET /api/v1/cubes/sales/cell?addr=Plan&addr=2021&addr=Q1&addr=North&addr=Total
func addressTokens(c *gin.Context) []string {
	return c.QueryArray("addr")
}

func (a *API) getCell(c *gin.Context) {
	cubeName := c.Param("cube")
	cube, ok := a.DB.Cube(cubeName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown cube"})
		return
	}
	res, err := cube.Get(addressTokens(c)...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": res.Float(), "display": res.String(), "isValue": res.IsValue})
}

type setCellRequest struct {
	Value float64 `json:"value"`
}

func (a *API) setCell(c *gin.Context) {
	cubeName := c.Param("cube")
	var body setCellRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.DB.Write(cubeName, body.Value, addressTokens(c)...); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	switch {
	case gridcube.IsUnknownMemberError(err), gridcube.IsAmbiguousMemberError(err), gridcube.IsUnderdefinedAddressError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
