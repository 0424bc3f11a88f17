package api

import (
	"errors"
	"net/http"
	"strconv"

	"shop-service/internal/auth"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	store          *store.Store
	cartService    *service.CartService
	orderService   *service.OrderService
	addressService *service.AddressService
	reviewService  *service.ReviewService
	paymentService *service.PaymentService
	verifier       auth.Verifier
}

// NewHandler creates a new HTTP handler
func NewHandler(
	st *store.Store,
	cartService *service.CartService,
	orderService *service.OrderService,
	addressService *service.AddressService,
	reviewService *service.ReviewService,
	paymentService *service.PaymentService,
	verifier auth.Verifier,
) *Handler {
	return &Handler{
		store:          st,
		cartService:    cartService,
		orderService:   orderService,
		addressService: addressService,
		reviewService:  reviewService,
		paymentService: paymentService,
		verifier:       verifier,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	v1.GET("/products", h.listProducts)
	v1.GET("/products/:id", h.getProduct)
	v1.GET("/products/:id/reviews", h.listReviews)

	authed := v1.Group("")
	authed.Use(Authenticate(h.verifier))
	{
		authed.GET("/cart", h.getCart)
		authed.POST("/cart/items", h.addToCart)
		authed.PUT("/cart/items/:id", h.updateCartItem)
		authed.DELETE("/cart/items/:id", h.removeCartItem)
		authed.DELETE("/cart", h.clearCart)

		authed.POST("/orders", h.placeOrder)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.POST("/orders/:id/cancel", h.cancelOrder)
		authed.GET("/orders/:id/payment", h.getPayment)

		authed.POST("/addresses", h.createAddress)
		authed.GET("/addresses", h.listAddresses)
		authed.GET("/addresses/:id", h.getAddress)
		authed.PUT("/addresses/:id", h.updateAddress)
		authed.DELETE("/addresses/:id", h.deleteAddress)
		authed.POST("/addresses/:id/default", h.setDefaultAddress)

		authed.POST("/reviews", h.createReview)
		authed.PUT("/reviews/:id", h.updateReview)
		authed.DELETE("/reviews/:id", h.deleteReview)
	}

	admin := v1.Group("/admin")
	admin.Use(Authenticate(h.verifier), RequireAdmin())
	{
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.DELETE("/products/:id", h.deactivateProduct)
		admin.PUT("/orders/:id", h.adminUpdateOrder)
	}
}

// statusForError maps domain errors onto HTTP status codes. Not-found
// covers both absent rows and rows owned by other users, so nothing leaks.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrCartItemNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrAddressNotFound),
		errors.Is(err, store.ErrReviewNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrEmptyCart),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrNotPurchased):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body = gin.H{"error": "Internal server error"}
	}
	c.JSON(status, body)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.store.GetDB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// --- catalog ---

func (h *Handler) listProducts(c *gin.Context) {
	limit, offset := pagination(c)
	activeOnly := c.DefaultQuery("active_only", "true") != "false"

	products, err := h.store.ListProducts(c.Request.Context(), activeOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type productRequest struct {
	SKU           string `json:"sku" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	Price         string `json:"price" binding:"required"`
	StockQuantity int    `json:"stock_quantity" binding:"min=0"`
	ImageURL      string `json:"image_url"`
	IsActive      *bool  `json:"is_active"`
	CategoryID    *int64 `json:"category_id"`
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := &models.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		Price:         price,
		StockQuantity: req.StockQuantity,
		ImageURL:      req.ImageURL,
		IsActive:      true,
		CategoryID:    req.CategoryID,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id, true)
	if err != nil {
		respondError(c, err)
		return
	}

	product.Name = req.Name
	product.Description = req.Description
	product.Price = price
	product.StockQuantity = req.StockQuantity
	product.ImageURL = req.ImageURL
	product.CategoryID = req.CategoryID
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := h.store.UpdateProduct(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deactivateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.store.DeactivateProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deactivated"})
}

// --- cart ---

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := h.cartService.AddToCart(c.Request.Context(), identityFrom(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := h.cartService.UpdateLine(c.Request.Context(), identityFrom(c).UserID, id, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.cartService.RemoveLine(c.Request.Context(), identityFrom(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cartService.ClearCart(c.Request.Context(), identityFrom(c).UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.cartService.GetCart(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// --- orders ---

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), identityFrom(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	limit, offset := pagination(c)

	orders, err := h.orderService.ListOrders(c.Request.Context(), identityFrom(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id, identityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), id, identityFrom(c), "cancelled by customer")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	// Scope the order lookup first so foreign orders stay invisible.
	if _, err := h.orderService.GetOrder(c.Request.Context(), id, identityFrom(c)); err != nil {
		respondError(c, err)
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type adminOrderRequest struct {
	Status         *string `json:"status"`
	PaymentStatus  *string `json:"payment_status"`
	TrackingNumber *string `json:"tracking_number"`
	Notes          *string `json:"notes"`
}

func (h *Handler) adminUpdateOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req adminOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	upd := store.AdminOrderUpdate{
		PaymentStatus:  req.PaymentStatus,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	}
	if req.Status != nil {
		status := models.OrderStatus(*req.Status)
		upd.Status = &status
	}

	order, err := h.orderService.AdminUpdateOrder(c.Request.Context(), id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- addresses ---

func (h *Handler) createAddress(c *gin.Context) {
	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	addr, err := h.addressService.CreateAddress(c.Request.Context(), identityFrom(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}

func (h *Handler) listAddresses(c *gin.Context) {
	addrs, err := h.addressService.ListAddresses(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}

func (h *Handler) getAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	addr, err := h.addressService.GetAddress(c.Request.Context(), identityFrom(c).UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *Handler) updateAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	addr, err := h.addressService.UpdateAddress(c.Request.Context(), identityFrom(c).UserID, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.addressService.DeleteAddress(c.Request.Context(), identityFrom(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

func (h *Handler) setDefaultAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	addr, err := h.addressService.SetDefault(c.Request.Context(), identityFrom(c).UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

// --- reviews ---

func (h *Handler) createReview(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), identityFrom(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *Handler) listReviews(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	reviews, err := h.reviewService.ListReviews(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

type updateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func (h *Handler) updateReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	review, err := h.reviewService.UpdateReview(c.Request.Context(), identityFrom(c).UserID, id, req.Rating, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) deleteReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(c.Request.Context(), identityFrom(c).UserID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}
