package shop

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

const adminSession = "distri_admin"

// Server exposes the storefront API, the payment webhooks, and the two
// tenant-scoped admin consoles over HTTP.
type Server struct {
	svc      *Service
	echo     *echo.Echo
	sessions *sessions.CookieStore
	logger   *slog.Logger
}

// NewServer builds the router. OAuth routes are registered only when Google
// credentials are configured.
func NewServer(svc *Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:      svc,
		echo:     echo.New(),
		sessions: sessions.NewCookieStore([]byte(svc.cfg.SessionSecret)),
		logger:   logger,
	}
	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLog)

	e := s.echo
	e.GET("/healthz", s.handleHealth)

	e.GET("/api/products", s.handleProducts)
	e.GET("/api/products/:id", s.handleProduct)
	e.POST("/api/orders", s.handleCreateOrder)
	e.GET("/api/orders/:id", s.handleGetOrder)

	e.POST("/webhooks/wompi", s.handleWompi)
	e.POST("/webhooks/pse", s.handlePSE)
	e.POST("/webhooks/stripe", s.handleStripe)

	if svc.cfg.OAuthClientID != "" {
		gothic.Store = s.sessions
		goth.UseProviders(google.New(
			svc.cfg.OAuthClientID, svc.cfg.OAuthSecret, svc.cfg.OAuthRedirect,
			"email", "profile"))
		e.GET("/auth/google", s.handleAuthBegin)
		e.GET("/auth/google/callback", s.handleAuthCallback)
		e.GET("/auth/logout", s.handleLogout)
	}

	admin := e.Group("/admin/:tenant", s.requireAdmin)
	admin.GET("/orders", s.handleAdminOrders)
	admin.PUT("/orders/:id/status", s.handleAdminStatus)

	return s
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	return s.echo.Start(":" + s.svc.cfg.Port)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info("http",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"dur", time.Since(start).Round(time.Millisecond).String())
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- storefront ---

func (s *Server) handleProducts(c echo.Context) error {
	products, err := s.svc.Products()
	if errors.Is(err, ErrNoProductSheet) {
		return c.JSON(http.StatusOK, []Product{})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, products)
}

func (s *Server) handleProduct(c echo.Context) error {
	p, err := s.svc.Product(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	return c.JSON(http.StatusOK, p)
}

type createOrderRequest struct {
	Tenant        string      `json:"tenant"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items"`
}

func (s *Server) handleCreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed order")
	}
	if req.Tenant == "" {
		req.Tenant = Tenants[0]
	}
	if len(req.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "order has no items")
	}
	o, err := s.svc.CreateOrder(c.Request().Context(), req.Tenant, req.CustomerName, req.CustomerEmail, req.Items)
	if errors.Is(err, ErrBadTenant) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (s *Server) handleGetOrder(c echo.Context) error {
	o, err := s.svc.GetOrder(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrOrderNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

// --- webhooks ---

func (s *Server) handleWompi(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	ev, err := parseWompiEvent(body, s.svc.cfg.WompiSecret)
	return s.finishWebhook(c, ev, err)
}

func (s *Server) handlePSE(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	ev, err := parsePSEEvent(body)
	return s.finishWebhook(c, ev, err)
}

func (s *Server) handleStripe(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	ev, err := parseStripeEvent(body, c.Request().Header.Get("Stripe-Signature"), s.svc.cfg.StripeSecret)
	return s.finishWebhook(c, ev, err)
}

// finishWebhook applies a normalized event. Providers retry on non-2xx, so
// ignorable events and unknown references both acknowledge with 200.
func (s *Server) finishWebhook(c echo.Context, ev PaymentEvent, err error) error {
	switch {
	case errors.Is(err, ErrBadSignature):
		return echo.NewHTTPError(http.StatusUnauthorized, "bad signature")
	case errors.Is(err, ErrIgnoredEvent):
		return c.NoContent(http.StatusOK)
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := s.svc.applyPaymentEvent(c.Request().Context(), ev); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.logger.Warn("webhook for unknown order", "provider", ev.Provider, "ref", ev.Reference)
			return c.NoContent(http.StatusOK)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// --- auth ---

func (s *Server) handleAuthBegin(c echo.Context) error {
	req := withProvider(c.Request(), "google")
	gothic.BeginAuthHandler(c.Response(), req)
	return nil
}

func (s *Server) handleAuthCallback(c echo.Context) error {
	req := withProvider(c.Request(), "google")
	user, err := gothic.CompleteUserAuth(c.Response(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	sess, _ := s.sessions.Get(c.Request(), adminSession)
	sess.Values["email"] = user.Email
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLogout(c echo.Context) error {
	sess, _ := s.sessions.Get(c.Request(), adminSession)
	sess.Options.MaxAge = -1
	sess.Save(c.Request(), c.Response())
	return c.Redirect(http.StatusFound, "/")
}

func withProvider(r *http.Request, provider string) *http.Request {
	q := r.URL.Query()
	q.Set("provider", provider)
	r.URL.RawQuery = q.Encode()
	return r
}

// sessionEmail returns the signed-in admin email. In dev mode the
// X-Admin-Email header substitutes for OAuth.
func (s *Server) sessionEmail(c echo.Context) string {
	if s.svc.cfg.DevMode {
		if email := c.Request().Header.Get("X-Admin-Email"); email != "" {
			return email
		}
	}
	sess, err := s.sessions.Get(c.Request(), adminSession)
	if err != nil {
		return ""
	}
	email, _ := sess.Values["email"].(string)
	return email
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenant := c.Param("tenant")
		email := s.sessionEmail(c)
		if email == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
		}
		if !s.svc.Authorize(tenant, email) {
			return echo.NewHTTPError(http.StatusForbidden, "not an admin for this console")
		}
		return next(c)
	}
}

// --- admin ---

func (s *Server) handleAdminOrders(c echo.Context) error {
	limit := 0
	echo.QueryParamsBinder(c).Int("limit", &limit)
	orders, err := s.svc.ListOrders(c.Request().Context(), c.Param("tenant"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if orders == nil {
		orders = []*Order{}
	}
	return c.JSON(http.StatusOK, orders)
}

type statusRequest struct {
	Status     string `json:"status"`
	PaymentRef string `json:"payment_ref"`
}

func (s *Server) handleAdminStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	switch req.Status {
	case StatusPending, StatusPaid, StatusFailed, StatusVoided:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	o, err := s.svc.UpdateOrderStatus(c.Request().Context(), c.Param("id"), req.Status, req.PaymentRef)
	if errors.Is(err, ErrOrderNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}
