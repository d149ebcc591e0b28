package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/auth"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/models"
	"github.com/sanziv9999/GharkoSwad/internal/money"
	"github.com/sanziv9999/GharkoSwad/internal/orders"
	"github.com/sanziv9999/GharkoSwad/internal/payments"
)

type OrderHandler struct {
	orders   *orders.Service
	queries  *orders.QueryService
	payments *payments.Service
	logger   *slog.Logger
}

func NewOrderHandler(orderSvc *orders.Service, queries *orders.QueryService, paymentSvc *payments.Service, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		orders:   orderSvc,
		queries:  queries,
		payments: paymentSvc,
		logger:   logger.With("component", "http"),
	}
}

// Register mounts the order routes on rg. Everything except the eSewa
// callback sits behind requireActor.
func (h *OrderHandler) Register(rg *gin.RouterGroup, requireActor gin.HandlerFunc) {
	rg.POST("/verify-esewa", h.VerifyEsewa)

	authed := rg.Group("", requireActor)
	{
		authed.POST("/place", h.PlaceOrder)
		authed.PUT("/cancel-order", h.CancelOrder)
		authed.PUT("/cancel-items", h.CancelItems)

		authed.GET("/user/:userId", h.BuyerOrders)
		authed.GET("/user/:userId/status", h.BuyerOrders)
		authed.GET("/chef/:userId", h.ChefOrders)
		authed.GET("/delivery/:userId/ready", h.ReadyOrders)
		authed.GET("/delivery/:userId/status", h.DeliveryOrders)

		authed.PUT("/:orderId/status", h.UpdateOrderStatus)
		authed.PUT("/:orderId/delivery-status", h.UpdateDeliveryStatus)
		authed.PUT("/:orderId/payment-status", h.UpdatePaymentStatus)
	}
}

type PlaceOrderRequest struct {
	FoodItemIDs         []uint          `json:"food_item_ids"`
	Quantities          []int           `json:"quantities"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentMethod       string          `json:"payment_method"`
	DeliveryLocation    string          `json:"delivery_location"`
	DeliveryPhone       string          `json:"delivery_phone"`
	DeliveryCoordinates string          `json:"delivery_coordinates"`
	TransactionUUID     string          `json:"transaction_uuid"`
}

type CancelOrderRequest struct {
	OrderID uint `json:"order_id"`
}

type CancelItemsRequest struct {
	OrderItemIDs []uint `json:"order_item_ids"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// VerifyEsewaRequest is the gateway callback body. Status FAILED records a
// failed payment; anything else is treated as a success confirmation.
type VerifyEsewaRequest struct {
	TransactionUUID string          `json:"transaction_uuid"`
	Amount          decimal.Decimal `json:"amount"`
	RefID           string          `json:"ref_id"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason"`
}

type OrderItemResponse struct {
	OrderItemID uint    `json:"order_item_id"`
	FoodItemID  uint    `json:"food_item_id"`
	PreparerID  uint    `json:"preparer_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type OrderResponse struct {
	OrderID             uint                `json:"order_id"`
	UserID              uint                `json:"user_id"`
	Items               []OrderItemResponse `json:"order_items"`
	Amount              *float64            `json:"amount"`
	PaymentMethod       string              `json:"payment_method,omitempty"`
	PaymentStatus       string              `json:"payment_status,omitempty"`
	FailureReason       string              `json:"failure_reason,omitempty"`
	Status              string              `json:"status"`
	OrderDate           time.Time           `json:"order_date"`
	DeliveryLocation    string              `json:"delivery_location"`
	DeliveryPhone       string              `json:"delivery_phone"`
	DeliveryCoordinates string              `json:"delivery_coordinates,omitempty"`
	TransactionUUID     string              `json:"transaction_uuid,omitempty"`
}

func NewOrderResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		OrderID:             o.ID,
		UserID:              o.UserID,
		Items:               make([]OrderItemResponse, 0, len(o.Items)),
		Status:              string(o.Status),
		OrderDate:           o.OrderedAt,
		DeliveryLocation:    o.DeliveryLocation,
		DeliveryPhone:       o.DeliveryPhone,
		DeliveryCoordinates: o.DeliveryCoordinates,
	}
	for _, item := range o.Items {
		subtotal, _ := item.SubtotalMinor()
		resp.Items = append(resp.Items, OrderItemResponse{
			OrderItemID: item.ID,
			FoodItemID:  item.FoodItemID,
			PreparerID:  item.PreparerID,
			Quantity:    item.Quantity,
			UnitPrice:   money.ToFloat(item.UnitPriceMinor),
			Subtotal:    money.ToFloat(subtotal),
		})
	}
	if p := o.Payment; p != nil {
		amount := money.ToFloat(p.AmountMinor)
		resp.Amount = &amount
		resp.PaymentMethod = string(p.Method)
		resp.PaymentStatus = string(p.Status)
		resp.FailureReason = p.FailureReason
		resp.TransactionUUID = p.TransactionRef()
	}
	return resp
}

func newOrderResponses(list []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, NewOrderResponse(&list[i]))
	}
	return out
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	actor := mustActor(c)

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.CodeValidation, err, "invalid request"))
		return
	}

	order, err := h.orders.Place(c.Request.Context(), orders.PlaceOrderCommand{
		BuyerID:             actor.ID,
		FoodItemIDs:         req.FoodItemIDs,
		Quantities:          req.Quantities,
		Amount:              req.Amount,
		PaymentMethod:       req.PaymentMethod,
		DeliveryLocation:    req.DeliveryLocation,
		DeliveryPhone:       req.DeliveryPhone,
		DeliveryCoordinates: req.DeliveryCoordinates,
		TransactionRef:      req.TransactionUUID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Order placed successfully", NewOrderResponse(order))
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	actor := mustActor(c)

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.CodeValidation, err, "invalid request"))
		return
	}

	order, err := h.orders.Cancel(c.Request.Context(), req.OrderID, actor.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Order cancelled successfully", NewOrderResponse(order))
}

func (h *OrderHandler) CancelItems(c *gin.Context) {
	actor := mustActor(c)

	var req CancelItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.CodeValidation, err, "invalid request"))
		return
	}

	cancelled, err := h.orders.CancelItems(c.Request.Context(), actor.ID, req.OrderItemIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Order items cancelled successfully", gin.H{"cancelled_item_ids": cancelled})
}

func (h *OrderHandler) BuyerOrders(c *gin.Context) {
	actor := mustActor(c)
	userID, err := pathID(c, "userId")
	if err != nil {
		h.fail(c, err)
		return
	}

	list, err := h.queries.ByBuyer(c.Request.Context(), actor, userID, c.Query("status"))
	h.respondList(c, list, err)
}

func (h *OrderHandler) ChefOrders(c *gin.Context) {
	actor := mustActor(c)
	chefID, err := pathID(c, "userId")
	if err != nil {
		h.fail(c, err)
		return
	}

	list, err := h.queries.ByPreparer(c.Request.Context(), actor, chefID, c.Query("status"))
	h.respondList(c, list, err)
}

func (h *OrderHandler) ReadyOrders(c *gin.Context) {
	actor, err := h.pathActor(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	list, err := h.queries.ReadyForDelivery(c.Request.Context(), actor)
	h.respondList(c, list, err)
}

func (h *OrderHandler) DeliveryOrders(c *gin.Context) {
	actor, err := h.pathActor(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	list, err := h.queries.DeliveryByStatus(c.Request.Context(), actor, c.Query("status"))
	h.respondList(c, list, err)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	h.transition(c, h.orders.UpdateOrderStatus, "Order status updated to %s successfully")
}

func (h *OrderHandler) UpdateDeliveryStatus(c *gin.Context) {
	h.transition(c, h.orders.UpdateDeliveryStatus, "Delivery status updated to %s successfully")
}

func (h *OrderHandler) transition(c *gin.Context, apply func(context.Context, orders.TransitionCommand) (*models.Order, error), message string) {
	actor := mustActor(c)
	orderID, err := pathID(c, "orderId")
	if err != nil {
		h.fail(c, err)
		return
	}
	req, err := bindStatus(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	order, err := apply(c.Request.Context(), orders.TransitionCommand{OrderID: orderID, Actor: actor, Target: req.Status})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf(message, order.Status), NewOrderResponse(order))
}

func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	actor := mustActor(c)
	orderID, err := pathID(c, "orderId")
	if err != nil {
		h.fail(c, err)
		return
	}
	req, err := bindStatus(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	order, err := h.payments.UpdateStatus(c.Request.Context(), payments.UpdateStatusCommand{OrderID: orderID, Actor: actor, Target: req.Status})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Payment status updated to COMPLETED successfully", NewOrderResponse(order))
}

func (h *OrderHandler) VerifyEsewa(c *gin.Context) {
	var req VerifyEsewaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.CodeValidation, err, "invalid request"))
		return
	}

	if strings.EqualFold(strings.TrimSpace(req.Status), string(models.PaymentStatusFailed)) {
		order, err := h.payments.MarkFailed(c.Request.Context(), req.TransactionUUID, req.Reason)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, "eSewa payment marked as failed", NewOrderResponse(order))
		return
	}

	order, err := h.payments.Verify(c.Request.Context(), payments.VerifyCommand{
		TransactionRef: req.TransactionUUID,
		Amount:         req.Amount,
		GatewayRef:     req.RefID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "eSewa payment verified successfully", NewOrderResponse(order))
}

// pathActor checks that :userId names the session user.
func (h *OrderHandler) pathActor(c *gin.Context) (identity.Actor, error) {
	actor := mustActor(c)
	userID, err := pathID(c, "userId")
	if err != nil {
		return identity.Actor{}, err
	}
	if userID != actor.ID {
		return identity.Actor{}, apperr.New(apperr.CodeForbidden, "user id does not match the logged-in user")
	}
	return actor, nil
}

func (h *OrderHandler) respondList(c *gin.Context, list []models.Order, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(list) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	respond(c, http.StatusOK, "Orders retrieved successfully", newOrderResponses(list))
}

func (h *OrderHandler) fail(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "code", code, "error", err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message, "data": nil})
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"status": "success", "message": message, "data": data})
}

func bindStatus(c *gin.Context) (StatusRequest, error) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, apperr.Wrap(apperr.CodeValidation, err, "invalid request")
	}
	if strings.TrimSpace(req.Status) == "" {
		return req, apperr.New(apperr.CodeValidation, "status is required in request body")
	}
	return req, nil
}

func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Newf(apperr.CodeValidation, "invalid %s: %s", name, c.Param(name))
	}
	return uint(id), nil
}

// mustActor is only called behind auth.RequireActor.
func mustActor(c *gin.Context) identity.Actor {
	actor, _ := auth.ActorFrom(c)
	return actor
}
