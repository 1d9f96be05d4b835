package api

import (
	models "QuotePulse/internal/domain/models"
	"QuotePulse/internal/service/quote"
	"QuotePulse/internal/usecase"
	xhttp "QuotePulse/pkg/http"
	xlogger "QuotePulse/pkg/logger"
	"QuotePulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// MarketHandler serves the quote, history, analysis and backtest endpoints.
type MarketHandler struct {
	logger   *xlogger.Logger
	resolver *usecase.Resolver
	analyzer *usecase.Analyzer
	stream   *StreamHandler
}

func NewMarketHandler(logger *xlogger.Logger, resolver *usecase.Resolver, analyzer *usecase.Analyzer, stream *StreamHandler) *MarketHandler {
	return &MarketHandler{logger: logger, resolver: resolver, analyzer: analyzer, stream: stream}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/quote", h.Quote)
	g.GET("/history", h.History)
	g.GET("/analysis", h.Analysis)
	g.GET("/backtest", h.Backtest)
	if h.stream != nil {
		g.GET("/stream", h.stream.Serve)
	}
}

// Quote resolves one or more comma-separated symbols. Unresolvable symbols
// are reported per-symbol; a single invalid symbol is a 404.
func (h *MarketHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbols := util.SplitSymbols(req.Symbols)
	if len(symbols) == 0 {
		return xhttp.BadRequestResponse(c, map[string]string{"error": "no symbols given"})
	}
	if len(symbols) == 1 {
		q, err := h.resolver.ResolveQuote(c.Request().Context(), symbols[0])
		if err != nil {
			return h.quoteError(c, err)
		}
		return xhttp.SuccessResponse(c, q)
	}

	quotes, errs := h.resolver.ResolveBatch(c.Request().Context(), symbols)
	body := map[string]interface{}{"quotes": quotes}
	if len(errs) > 0 {
		failed := make(map[string]string, len(errs))
		for sym, err := range errs {
			failed[sym] = err.Error()
		}
		body["failed"] = failed
	}
	return xhttp.SuccessResponse(c, body)
}

func (h *MarketHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	series, err := h.resolver.History(c.Request().Context(), req.Symbol, req.Range, req.Interval)
	if err != nil {
		return h.quoteError(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, series)
}

func (h *MarketHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("analysis usecase error", xlogger.Error(err))
		return h.quoteError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sum, err := h.analyzer.Backtest(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("backtest usecase error", xlogger.Error(err))
		return h.quoteError(c, err)
	}
	return xhttp.SuccessResponse(c, sum)
}

// quoteError maps pipeline errors onto HTTP statuses. Invalid symbols are the
// caller's fault; everything else surfaces as a 500 via AppErrorResponse.
func (h *MarketHandler) quoteError(c echo.Context, err error) error {
	if quote.IsInvalidSymbol(err) {
		return xhttp.NotFoundResponse(c, map[string]string{"error": err.Error()})
	}
	return xhttp.AppErrorResponse(c, xhttp.InternalError("quote pipeline failed").WithError(err))
}
