package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	apperrors "webstore-backend/internal/errors"
	"webstore-backend/internal/models"
	repository "webstore-backend/internal/repositories"
	"webstore-backend/pkg/sendGrid"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyConverter converts a base-currency amount to a target currency.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, targetCurrency string) (decimal.Decimal, error)
	BaseCurrency() string
}

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
	AddProduct(ctx context.Context, userID, productID uuid.UUID) (*models.LineItemView, error)
	RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (*models.LineItemView, error)
	ToggleSelect(ctx context.Context, userID, itemID uuid.UUID) (*models.LineItemView, error)
	Checkout(ctx context.Context, userID uuid.UUID) ([]models.LineItemView, error)
}

type cartService struct {
	cartRepo   repository.CartRepository
	userRepo   repository.UserRepository
	catalog    CatalogService
	converter  CurrencyConverter
	email      sendGrid.EmailService
	maxRetries int
}

func NewCartService(cartRepo repository.CartRepository, userRepo repository.UserRepository, catalog CatalogService, converter CurrencyConverter, email sendGrid.EmailService, maxRetries int) CartService {
	return &cartService{
		cartRepo:   cartRepo,
		userRepo:   userRepo,
		catalog:    catalog,
		converter:  converter,
		email:      email,
		maxRetries: maxRetries,
	}
}

// GetCart assembles the user's cart view: every line joined to current catalog
// data, costs converted into the user's regional currency. Never mutates.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to load cart").WithError(err)
	}

	view := &models.CartView{
		ID:       cart.ID,
		UserID:   cart.UserID,
		Currency: user.RegionalCurrency,
		Total:    decimal.Decimal{},
	}

	for _, item := range cart.Items {

		itemView, err := s.lineItemView(ctx, &item, user)
		if err != nil {
			return nil, err
		}

		view.Items = append(view.Items, *itemView)
		view.Total = view.Total.Add(itemView.Cost)
	}

	return view, nil
}

// AddProduct puts one unit of the product into the user's cart, creating the
// cart lazily and merging into the existing line for the same product. The
// line's captured cost grows by one unit of the product's current base price.
func (s *cartService) AddProduct(ctx context.Context, userID, productID uuid.UUID) (*models.LineItemView, error) {

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, apperrors.NotFoundError("Product not found").WithError(err)
	}

	if product.StockQuantity <= 0 {
		return nil, apperrors.NotFoundError("Product is out of stock")
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to load cart").WithError(err)
	}

	var item *models.LineItem

	err = s.withRetry(func() error {
		var addErr error
		item, addErr = s.cartRepo.AddItem(ctx, cart.ID, productID, product.Price, product.StockQuantity)

		return addErr
	})

	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperrors.BadRequestError("Not enough stock to add another unit")
		}

		if _, ok := apperrors.IsAppError(err); ok {
			return nil, err
		}

		return nil, apperrors.DatabaseError("Failed to add item to cart").WithError(err)
	}

	return s.lineItemView(ctx, item, user)
}

// RemoveProduct takes one unit of the product out of the cart, deleting the
// line entirely when the last unit goes. The accumulated cost is left as-is
// on decrement. Returns the line's last known view.
func (s *cartService) RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (*models.LineItemView, error) {

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to load cart").WithError(err)
	}

	var item *models.LineItem

	err = s.withRetry(func() error {
		var removeErr error
		item, _, removeErr = s.cartRepo.RemoveItemUnit(ctx, cart.ID, productID)

		return removeErr
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Item not found in the cart").WithError(err)
		}

		if _, ok := apperrors.IsAppError(err); ok {
			return nil, err
		}

		return nil, apperrors.DatabaseError("Failed to remove item from cart").WithError(err)
	}

	return s.lineItemView(ctx, item, user)
}

// ToggleSelect flips the line's checkout selection. A line whose quantity
// exceeds the product's current stock cannot be selected (stale-stock guard).
func (s *cartService) ToggleSelect(ctx context.Context, userID, itemID uuid.UUID) (*models.LineItemView, error) {

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to load cart").WithError(err)
	}

	item, err := s.cartRepo.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Item not found in the cart").WithError(err)
		}

		return nil, apperrors.DatabaseError("Failed to load cart item").WithError(err)
	}

	product, err := s.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, apperrors.NotFoundError("Product not found").WithError(err)
	}

	if item.Quantity > product.StockQuantity {
		return nil, apperrors.NotFoundError("Requested quantity is no longer in stock")
	}

	updated, err := s.cartRepo.SetItemSelected(ctx, cart.ID, itemID, !item.Selected)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to update selection").WithError(err)
	}

	return s.lineItemView(ctx, updated, user)
}

// Checkout turns the selected lines into a completed purchase. Reading the
// selected lines, decrementing stock and deleting the lines happen in one
// transaction before the confirmation email goes out; a failed email never
// undoes the purchase.
func (s *cartService) Checkout(ctx context.Context, userID uuid.UUID) ([]models.LineItemView, error) {

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.EmailConfirmed {
		return nil, apperrors.BadRequestError("Email address must be confirmed before checkout")
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("Failed to load cart").WithError(err)
	}

	var items []models.LineItem

	err = s.withRetry(func() error {
		var purchaseErr error
		items, purchaseErr = s.cartRepo.CompletePurchase(ctx, cart.ID)

		return purchaseErr
	})

	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperrors.BadRequestError("Insufficient stock for selected items")
		}

		if _, ok := apperrors.IsAppError(err); ok {
			return nil, err
		}

		return nil, apperrors.DatabaseError("Failed to complete purchase").WithError(err)
	}

	if len(items) == 0 {
		return nil, apperrors.BadRequestError("No items selected for checkout")
	}

	for i := range items {
		s.catalog.InvalidateProduct(ctx, items[i].ProductID)
	}

	// The purchase is committed from here on; view assembly and notification
	// failures must not surface as checkout errors.
	views := make([]models.LineItemView, 0, len(items))
	total := decimal.Decimal{}

	for i := range items {
		view, err := s.lineItemView(ctx, &items[i], user)
		if err != nil {
			slog.Warn("Falling back to base-currency views for committed purchase",
				slog.String("userId", user.ID.String()),
				slog.String("error", err.Error()),
			)

			views = views[:0]
			total = decimal.Decimal{}

			for j := range items {
				fallback := s.baseLineItemView(ctx, &items[j])
				views = append(views, *fallback)
				total = total.Add(fallback.Cost)
			}

			break
		}

		views = append(views, *view)
		total = total.Add(view.Cost)
	}

	if err := s.sendPurchaseConfirmation(ctx, user, views, total); err != nil {
		slog.Error("Failed to send purchase confirmation",
			slog.String("userId", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return views, nil
}

func (s *cartService) getUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("User not found").WithError(err)
		}

		return nil, apperrors.DatabaseError("Failed to load user").WithError(err)
	}

	return user, nil
}

func (s *cartService) lineItemView(ctx context.Context, item *models.LineItem, user *models.User) (*models.LineItemView, error) {

	product, err := s.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, apperrors.NotFoundError("Product not found").WithError(err)
	}

	cost, err := s.converter.Convert(ctx, item.Cost, user.RegionalCurrency)
	if err != nil {
		return nil, apperrors.InternalError("Failed to convert currency").WithError(err)
	}

	return &models.LineItemView{
		ID:            item.ID,
		ProductID:     item.ProductID,
		ProductName:   product.Name,
		Quantity:      item.Quantity,
		StockQuantity: product.StockQuantity,
		Cost:          cost,
		Currency:      user.RegionalCurrency,
		Selected:      item.Selected,
	}, nil
}

// baseLineItemView builds a view without currency conversion, pricing the
// line in the base currency. Used when conversion is unavailable after the
// purchase has already committed. Product details are best-effort.
func (s *cartService) baseLineItemView(ctx context.Context, item *models.LineItem) *models.LineItemView {

	view := &models.LineItemView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Cost:      item.Cost,
		Currency:  s.converter.BaseCurrency(),
		Selected:  item.Selected,
	}

	if product, err := s.catalog.GetProduct(ctx, item.ProductID); err == nil {
		view.ProductName = product.Name
		view.StockQuantity = product.StockQuantity
	}

	return view
}

// withRetry re-runs op on transient concurrency failures, up to the
// configured budget, then surfaces a Conflict.
func (s *cartService) withRetry(op func() error) error {

	var err error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = op()

		if err == nil || !repository.IsRetryableError(err) {
			return err
		}
	}

	return apperrors.ConflictError("Cart was modified concurrently, please retry").WithError(err)
}
