package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/holidaysync"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/store"
)

const (
	msgNoDB          = "Base de datos no configurada"
	msgNoSync        = "Sincronización de feriados no configurada"
	msgBadDate       = "Formato de fecha inválido. Use YYYY-MM-DD"
	msgBadRange      = `La fecha "desde" debe ser anterior o igual a la fecha "hasta"`
	msgBadPage       = "Parámetros de paginación inválidos"
	msgDateRequired  = "La fecha es requerida"
	msgNameRequired  = "El nombre de la calculadora es requerido"
	msgBadID         = "ID de calculadora inválido"
	msgPresetMissing = "Calculadora no encontrada"
)

// httpError es un error con status, listo para responder.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, msg: msg} }

// fail responde {success:false, error}. Los errores sin status son 500 y se
// registran.
func (s *Server) fail(c *gin.Context, err error, what string) {
	var he *httpError
	if errors.As(err, &he) {
		c.AbortWithStatusJSON(he.status, gin.H{"success": false, "error": he.msg})
		return
	}
	s.log.Error(what, zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   fmt.Sprintf("%s: %v", what, err),
	})
}

func (s *Server) needsRepo(c *gin.Context) {
	if s.repo == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": msgNoDB})
		return
	}
	c.Next()
}

func parseWireDate(raw string) (time.Time, error) {
	t, err := time.Parse(fecha.DateFormat, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, badRequest(msgBadDate)
	}
	return t, nil
}

// parseRange lee desde/hasta. Si falta alguno de los dos se devuelve un
// rango vacío.
func parseRange(c *gin.Context) (from, to time.Time, err error) {
	desde, hasta := c.Query("desde"), c.Query("hasta")
	if desde == "" || hasta == "" {
		return time.Time{}, time.Time{}, nil
	}
	if from, err = parseWireDate(desde); err != nil {
		return
	}
	if to, err = parseWireDate(hasta); err != nil {
		return
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, badRequest(msgBadRange)
	}
	return from, to, nil
}

func parseQuery(c *gin.Context) (store.Query, error) {
	var q store.Query
	var err error
	if q.From, q.To, err = parseRange(c); err != nil {
		return q, err
	}
	pagina, porPagina := c.Query("pagina"), c.Query("porPagina")
	if pagina == "" || porPagina == "" {
		return q, nil
	}
	if q.Page, err = strconv.Atoi(pagina); err != nil || q.Page < 1 {
		return q, badRequest(msgBadPage)
	}
	if q.PerPage, err = strconv.Atoi(porPagina); err != nil || q.PerPage < 1 {
		return q, badRequest(msgBadPage)
	}
	return q, nil
}

func pageResponse[T any](p store.Page[T]) gin.H {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	out := gin.H{"success": true, "datos": items}
	if p.Page > 0 {
		out["pagina"] = p.Page
		out["porPagina"] = p.PerPage
		out["total"] = p.Total
		out["totalPaginas"] = p.TotalPages
	}
	return out
}

func upsertResponse(n int, what string) gin.H {
	return gin.H{
		"success":      true,
		"actualizados": n,
		"message":      fmt.Sprintf("Se guardaron/actualizaron %d %s", n, what),
	}
}

// bindError traduce un error de ShouldBindJSON: las validaciones de binding
// fallidas se informan con requiredMsg.
func bindError(err error, requiredMsg string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return badRequest(requiredMsg)
	}
	return badRequest("Datos inválidos: " + err.Error())
}

func (s *Server) getHolidays(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		s.fail(c, err, "query feriados")
		return
	}
	page, err := s.repo.QueryHolidays(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err, "query feriados")
		return
	}
	c.JSON(http.StatusOK, pageResponse(page))
}

type holidaysBody struct {
	Datos []model.Holiday `json:"datos"`
}

func (s *Server) postHolidays(c *gin.Context) {
	var body holidaysBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, bindError(err, msgDateRequired), "guardar feriados")
		return
	}
	if len(body.Datos) == 0 {
		s.fail(c, badRequest("No hay datos de feriados para guardar"), "guardar feriados")
		return
	}
	for _, h := range body.Datos {
		if h.Fecha.Time().IsZero() {
			s.fail(c, badRequest(msgDateRequired), "guardar feriados")
			return
		}
	}
	n, err := s.repo.UpsertHolidays(c.Request.Context(), body.Datos)
	if err != nil {
		s.fail(c, err, "guardar feriados")
		return
	}
	c.JSON(http.StatusOK, upsertResponse(n, "feriados"))
}

func (s *Server) postHoliday(c *gin.Context) {
	var h model.Holiday
	if err := c.ShouldBindJSON(&h); err != nil {
		s.fail(c, bindError(err, msgDateRequired), "guardar feriado")
		return
	}
	if h.Fecha.Time().IsZero() {
		s.fail(c, badRequest(msgDateRequired), "guardar feriado")
		return
	}
	if _, err := s.repo.UpsertHolidays(c.Request.Context(), []model.Holiday{h}); err != nil {
		s.fail(c, err, "guardar feriado")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Feriado guardado exitosamente"})
}

// postSync sincroniza feriados desde la fuente externa. Sin rango usa la
// ventana de la sincronización diaria.
func (s *Server) postSync(c *gin.Context) {
	if s.sync == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": msgNoSync})
		return
	}
	from, to, err := parseRange(c)
	if err != nil {
		s.fail(c, err, "sincronizar feriados")
		return
	}
	if from.IsZero() {
		from, to = holidaysync.DefaultWindow(s.now())
	}
	n, err := s.sync.Sync(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err, "sincronizar feriados")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"actualizados": n,
		"desde":        fecha.Format(from),
		"hasta":        fecha.Format(to),
		"message":      fmt.Sprintf("Se sincronizaron %d feriados", n),
	})
}

func (s *Server) getSeries(series model.Series) gin.HandlerFunc {
	what := "query " + string(series)
	return func(c *gin.Context) {
		q, err := parseQuery(c)
		if err != nil {
			s.fail(c, err, what)
			return
		}
		page, err := s.repo.QuerySeries(c.Request.Context(), series, q)
		if err != nil {
			s.fail(c, err, what)
			return
		}
		c.JSON(http.StatusOK, pageResponse(page))
	}
}

type seriesBody struct {
	Datos []model.Observation `json:"datos"`
}

func (s *Server) postSeries(series model.Series) gin.HandlerFunc {
	what := "guardar " + string(series)
	label := strings.ToUpper(string(series))
	return func(c *gin.Context) {
		var body seriesBody
		if err := c.ShouldBindJSON(&body); err != nil {
			s.fail(c, bindError(err, msgDateRequired), what)
			return
		}
		if len(body.Datos) == 0 {
			s.fail(c, badRequest(fmt.Sprintf("No hay datos de %s para guardar", label)), what)
			return
		}
		for _, o := range body.Datos {
			if o.Fecha.Time().IsZero() {
				s.fail(c, badRequest(msgDateRequired), what)
				return
			}
		}
		n, err := s.repo.UpsertSeries(c.Request.Context(), series, body.Datos)
		if err != nil {
			s.fail(c, err, what)
			return
		}
		c.JSON(http.StatusOK, upsertResponse(n, "valores de "+label))
	}
}

func (s *Server) savePreset(c *gin.Context) {
	var p model.Preset
	if err := c.ShouldBindJSON(&p); err != nil {
		s.fail(c, bindError(err, msgNameRequired), "guardar calculadora")
		return
	}
	if strings.TrimSpace(p.Nombre) == "" {
		s.fail(c, badRequest(msgNameRequired), "guardar calculadora")
		return
	}
	sum, err := s.repo.InsertPreset(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err, "guardar calculadora")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"calculadora": sum,
		"message":     "Calculadora guardada exitosamente",
	})
}

func (s *Server) listPresets(c *gin.Context) {
	list, err := s.repo.ListPresets(c.Request.Context())
	if err != nil {
		s.fail(c, err, "listar calculadoras")
		return
	}
	if list == nil {
		list = []model.PresetSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "calculadoras": list})
}

func (s *Server) getPreset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		s.fail(c, badRequest(msgBadID), "cargar calculadora")
		return
	}
	p, err := s.repo.GetPreset(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": msgPresetMissing})
		return
	}
	if err != nil {
		s.fail(c, err, "cargar calculadora")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "calculadora": p})
}
