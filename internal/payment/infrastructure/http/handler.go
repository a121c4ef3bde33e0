package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"paybridge/internal/payment/application"
	"paybridge/internal/payment/domain"
	"paybridge/pkg/signing"
)

// SignatureHeader carries the provider's HMAC over the raw webhook body.
const SignatureHeader = "X-Provider-Signature"

// RedirectURLs are the storefront pages customers land on after a session.
type RedirectURLs struct {
	Success         string
	CheckoutPayment string
	Home            string
}

type Handler struct {
	log        *slog.Logger
	sessions   *application.SessionService
	redirects  *application.RedirectHandler
	processor  *application.Processor
	correlator *application.Correlator
	secretKey  []byte
	urls       RedirectURLs
	tracer     trace.Tracer
}

func NewHandler(
	log *slog.Logger,
	sessions *application.SessionService,
	redirects *application.RedirectHandler,
	processor *application.Processor,
	correlator *application.Correlator,
	secretKey []byte,
	urls RedirectURLs,
) *Handler {
	return &Handler{
		log:        log,
		sessions:   sessions,
		redirects:  redirects,
		processor:  processor,
		correlator: correlator,
		secretKey:  secretKey,
		urls:       urls,
		tracer:     otel.Tracer("payment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/hostedpage/redirect", h.beginSession)
	r.Get("/hostedpage/return", h.postSessionReturn)
	r.Post("/webhooks/provider", h.webhook)
	r.Get("/config/payment-methods", h.paymentMethods)

	return r
}

// beginSession creates the hosted page URL and sends the customer there.
// Checkout calls this after the order has been captured and saved.
func (h *Handler) beginSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BeginSession")
	defer span.End()

	orderID := r.URL.Query().Get("order_id")
	paymentMethod := r.URL.Query().Get("payment_method")

	hostedURL, err := h.sessions.Begin(ctx, orderID, paymentMethod)
	if err != nil {
		// Send the customer back to the payment step so they can retry.
		http.Redirect(w, r, h.urls.CheckoutPayment, http.StatusFound)
		return
	}
	http.Redirect(w, r, hostedURL, http.StatusFound)
}

// postSessionReturn is the return URL for hosted sessions. The tag minted
// into the URL at session creation is checked first; this endpoint can
// cancel orders, so an unverified request must not reach any order logic.
func (h *Handler) postSessionReturn(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PostSessionReturn")
	defer span.End()

	q := r.URL.Query()
	orderID := q.Get("order_id")
	sessionID := q.Get("session_id")
	tag := q.Get("hmac")

	outcome, err := h.redirects.HandleReturn(ctx, orderID, sessionID, tag)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("hmac parameter is not valid"))
			return
		}
		h.log.Error("return handling failed", "order_id", orderID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch outcome {
	case application.OutcomeSuccess:
		http.Redirect(w, r, h.urls.Success, http.StatusFound)
	case application.OutcomeRetryCheckout:
		http.Redirect(w, r, h.urls.CheckoutPayment, http.StatusFound)
	default:
		http.Redirect(w, r, h.urls.Home, http.StatusFound)
	}
}

type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ExternalOrderNum string `json:"external_order_num"`
		Amount           int64  `json:"amount"`
		AmountRefunded   int64  `json:"amount_refunded"`
		Currency         string `json:"currency"`
		PaymentDeadline  string `json:"payment_deadline"`
		PaymentDetails   struct {
			Type string `json:"type"`
		} `json:"payment_details"`
		Refunds []struct {
			ID     string `json:"id"`
			Amount int64  `json:"amount"`
		} `json:"refunds"`
	} `json:"data"`
}

// webhook receives one provider event per call. 2xx acknowledges the event
// (including idempotent no-ops); 4xx tells the provider's delivery system
// to alert or retry.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "WebhookEvent")
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	if !signing.Verify(string(body), h.secretKey, r.Header.Get(SignatureHeader)) {
		h.log.Info("webhook signature does not match expected value")
		http.Error(w, "signature is not valid", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	kind, err := domain.ParseEventKind(payload.Type)
	if err != nil {
		h.log.Warn("unknown webhook event type", "type", payload.Type)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	ev := domain.WebhookEvent{
		Kind:             kind,
		ExternalOrderNum: payload.Data.ExternalOrderNum,
		Amount:           payload.Data.Amount,
		AmountRefunded:   payload.Data.AmountRefunded,
		Currency:         payload.Data.Currency,
		PaymentType:      payload.Data.PaymentDetails.Type,
		PaymentDeadline:  payload.Data.PaymentDeadline,
	}
	for _, ref := range payload.Data.Refunds {
		ev.Refunds = append(ev.Refunds, domain.Refund{ID: ref.ID, Amount: ref.Amount})
	}

	orderID, err := h.correlator.ResolveOrder(ctx, ev.ExternalOrderNum)
	if err != nil {
		if errors.Is(err, domain.ErrCorrelationNotFound) {
			// Likely an event for another installation sharing the
			// provider account; acknowledge so delivery is not retried.
			h.log.Info("webhook for unknown external order ignored", "external_order_num", ev.ExternalOrderNum)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.log.Error("correlation lookup failed", "external_order_num", ev.ExternalOrderNum, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.processor.Apply(ctx, orderID, ev); err != nil {
		if errors.Is(err, domain.ErrUnknownEventKind) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error("webhook processing failed", "order_id", orderID, "type", payload.Type, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.log.Info("webhook processed", "order_id", orderID, "type", payload.Type)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) paymentMethods(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentMethods")
	defer span.End()

	methods := h.sessions.PaymentMethods(ctx)

	out := make([]map[string]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, map[string]string{"type": m.Type, "name": m.Name})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
