package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/phantom-eng/bytefood-web/internal/adapter/geo"
	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/core/service"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

// CheckoutServiceName is the fully qualified gRPC service name.
const CheckoutServiceName = "bytefood.checkout.v1.Checkout"

// JSONCodecName is the content subtype clients must request, e.g. grpc.CallContentSubtype(JSONCodecName).
const JSONCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type SessionRequest struct {
	SessionID string `json:"session_id" validate:"max=64"`
}

type ItemRequest struct {
	SessionID string          `json:"session_id" validate:"max=64"`
	Name      string          `json:"name" validate:"required,max=200"`
	Price     decimal.Decimal `json:"price"`
}

type GRPCDeliveryRequest struct {
	SessionID    string  `json:"session_id" validate:"max=64"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Instructions *string `json:"instructions,omitempty" validate:"omitempty,max=500"`
}

type GRPCLocationRequest struct {
	SessionID string  `json:"session_id" validate:"max=64"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Lng       float64 `json:"lng" validate:"longitude"`
	Denied    bool    `json:"denied"`
}

type PaymentRequest struct {
	SessionID string `json:"session_id" validate:"max=64"`
	Method    string `json:"method,omitempty" validate:"omitempty,oneof=yape plin qr Yape Plin QR"`
	Number    string `json:"number,omitempty" validate:"max=32"`
	Expiry    string `json:"expiry,omitempty" validate:"max=8"`
	CVV       string `json:"cvv,omitempty" validate:"max=8"`
}

type CheckoutReply struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Session *service.View `json:"session,omitempty"`
	URL     string        `json:"url,omitempty"`
}

type GRPCHandler struct {
	checkout *service.CheckoutService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewGRPCHandler(checkout *service.CheckoutService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{checkout: checkout, validate: validator.New(), logger: logger}
}

// Register attaches the checkout service to s.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&checkoutServiceDesc, h)
}

func (h *GRPCHandler) OpenSession(ctx context.Context, req *SessionRequest) (*CheckoutReply, error) {
	sess, err := h.checkout.Open(ctx, req.SessionID)
	if err != nil {
		return h.reject(err)
	}
	return replyFor(sess, ""), nil
}

func (h *GRPCHandler) GetSession(ctx context.Context, req *SessionRequest) (*CheckoutReply, error) {
	sess, err := h.checkout.Resume(ctx, req.SessionID)
	if err != nil {
		return h.reject(err)
	}
	return replyFor(sess, ""), nil
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *ItemRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		return "", sess.Add(ctx, req.Name, req.Price)
	})
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *ItemRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		return "", sess.RemoveOne(ctx, req.Name)
	})
}

func (h *GRPCHandler) ClearCart(ctx context.Context, req *SessionRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		return "", sess.Clear(ctx)
	})
}

func (h *GRPCHandler) SetDelivery(ctx context.Context, req *GRPCDeliveryRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		if req.Address != nil {
			if err := sess.SetAddress(*req.Address); err != nil {
				return "", err
			}
		}
		if req.Instructions != nil {
			if err := sess.SetInstructions(*req.Instructions); err != nil {
				return "", err
			}
		}
		return "", nil
	})
}

func (h *GRPCHandler) CaptureLocation(ctx context.Context, req *GRPCLocationRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		var locator port.Locator = geo.Fixed{Location: domain.Location{Latitude: req.Lat, Longitude: req.Lng}}
		if req.Denied {
			locator = geo.Denied{}
		}
		pending, err := sess.CaptureLocation(ctx, locator)
		if err != nil {
			return "", err
		}
		select {
		case outcome := <-pending:
			return "Ubicación capturada", outcome.Err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}

func (h *GRPCHandler) BeginCheckout(ctx context.Context, req *SessionRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		return "", sess.BeginCheckout()
	})
}

func (h *GRPCHandler) ChooseQR(ctx context.Context, req *PaymentRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		method, err := domain.ParsePaymentMethod(req.Method)
		if err != nil {
			return "", err
		}
		return "", sess.ChooseQR(method)
	})
}

func (h *GRPCHandler) ConfirmQR(ctx context.Context, req *PaymentRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		pending, err := sess.ConfirmQR()
		if err != nil {
			return "", err
		}
		return awaitOutcome(ctx, pending)
	})
}

func (h *GRPCHandler) SubmitCard(ctx context.Context, req *PaymentRequest) (*CheckoutReply, error) {
	return h.withSession(ctx, req.SessionID, func(sess *service.Session) (string, error) {
		pending, err := sess.SubmitCard(domain.Card{Number: req.Number, Expiry: req.Expiry, CVV: req.CVV})
		if err != nil {
			return "", err
		}
		return awaitOutcome(ctx, pending)
	})
}

func (h *GRPCHandler) Send(ctx context.Context, req *SessionRequest) (*CheckoutReply, error) {
	sess, err := h.checkout.Resume(ctx, req.SessionID)
	if err != nil {
		return h.reject(err)
	}
	msg, err := sess.Send(ctx)
	if err != nil {
		return h.reject(err)
	}
	reply := replyFor(sess, "")
	reply.URL = msg.URL
	return reply, nil
}

func (h *GRPCHandler) withSession(ctx context.Context, id string, fn func(*service.Session) (string, error)) (*CheckoutReply, error) {
	sess, err := h.checkout.Resume(ctx, id)
	if err != nil {
		return h.reject(err)
	}
	message, err := fn(sess)
	if err != nil {
		return h.reject(err)
	}
	return replyFor(sess, message), nil
}

// reject reports shopper-facing rejections in the reply and everything else as a gRPC status.
func (h *GRPCHandler) reject(err error) (*CheckoutReply, error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	case service.IsNotice(err), errors.Is(err, domain.ErrStalePayment):
		return &CheckoutReply{Success: false, Message: domain.Notice(err)}, nil
	default:
		h.logger.Error("grpc call failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
}

func awaitOutcome(ctx context.Context, pending <-chan service.PaymentOutcome) (string, error) {
	select {
	case outcome := <-pending:
		if outcome.Err != nil {
			return "", outcome.Err
		}
		return domain.Notice(outcome.PresentErr), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func replyFor(sess *service.Session, message string) *CheckoutReply {
	view := sess.View()
	return &CheckoutReply{Success: true, Message: message, Session: &view}
}

func unaryHandler[Req any](name string, call func(*GRPCHandler, context.Context, *Req) (*CheckoutReply, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			h := srv.(*GRPCHandler)
			if err := h.validate.Struct(req); err != nil {
				return nil, status.Error(codes.InvalidArgument, "missing or invalid fields")
			}
			if interceptor == nil {
				return call(h, ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + CheckoutServiceName + "/" + name,
			}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(h, ctx, req.(*Req))
			})
		},
	}
}

var checkoutServiceDesc = grpc.ServiceDesc{
	ServiceName: CheckoutServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("OpenSession", (*GRPCHandler).OpenSession),
		unaryHandler("GetSession", (*GRPCHandler).GetSession),
		unaryHandler("AddItem", (*GRPCHandler).AddItem),
		unaryHandler("RemoveItem", (*GRPCHandler).RemoveItem),
		unaryHandler("ClearCart", (*GRPCHandler).ClearCart),
		unaryHandler("SetDelivery", (*GRPCHandler).SetDelivery),
		unaryHandler("CaptureLocation", (*GRPCHandler).CaptureLocation),
		unaryHandler("BeginCheckout", (*GRPCHandler).BeginCheckout),
		unaryHandler("ChooseQR", (*GRPCHandler).ChooseQR),
		unaryHandler("ConfirmQR", (*GRPCHandler).ConfirmQR),
		unaryHandler("SubmitCard", (*GRPCHandler).SubmitCard),
		unaryHandler("Send", (*GRPCHandler).Send),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bytefood/checkout/v1/checkout.proto",
}
