package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/internal/catalog"
	"github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/money"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

const addLineAttempts = 2

var errCartClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer open")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type variantFinder interface {
	FindVariant(ctx context.Context, itemID int64, color, size string) (*catalog.VariantView, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the active cart of every actor.
type Service interface {
	ResolveOrCreateCart(ctx context.Context, actor Actor) (*Resolution, error)
	GetCart(ctx context.Context, actor Actor) (*CartView, error)
	AddLine(ctx context.Context, actor Actor, input AddLineInput) (*MutationResult, error)
	SetLineQuantity(ctx context.Context, actor Actor, lineID int64, quantity int) (*MutationResult, error)
	RemoveLine(ctx context.Context, actor Actor, lineID int64) (*MutationResult, error)
	MergeIntoUserCart(ctx context.Context, guestCartID, userID int64) (*MergeResult, error)
	MergeGuestToken(ctx context.Context, guestToken string, userID int64) (*MergeResult, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Variants      variantFinder
	Outbox        outboxPublisher
	JWT           config.JWTConfig
	GuestTokenTTL time.Duration
	Metrics       *metrics.CartMetrics
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	variants variantFinder
	outbox   outboxPublisher
	jwt      config.JWTConfig
	guestTTL time.Duration
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Variants == nil {
		return nil, fmt.Errorf("variant finder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.GuestTokenTTL <= 0 {
		return nil, fmt.Errorf("guest token ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Discard()
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		variants: params.Variants,
		outbox:   params.Outbox,
		jwt:      params.JWT,
		guestTTL: params.GuestTokenTTL,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

func (s *service) ResolveOrCreateCart(ctx context.Context, actor Actor) (*Resolution, error) {
	res, err := s.resolve(ctx, s.repo, actor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
	}
	return res, nil
}

func (s *service) resolve(ctx context.Context, repo Repository, actor Actor) (*Resolution, error) {
	if actor.Authenticated() {
		cart, created, err := s.resolveUserCart(ctx, repo, actor.UserID)
		if err != nil {
			return nil, err
		}
		return &Resolution{CartID: cart.ID, Created: created}, nil
	}
	return s.resolveGuestCart(ctx, repo, actor.GuestToken)
}

// resolveUserCart looks before it creates. A concurrent create that wins the
// active-cart index is picked up by the re-read.
func (s *service) resolveUserCart(ctx context.Context, repo Repository, userID int64) (*models.Cart, bool, error) {
	cart, err := repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	uid := userID
	cart = &models.Cart{UserID: &uid, Status: enums.CartStatusCart}
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "ux_carts_active_user") {
			existing, findErr := repo.FindActiveByUser(ctx, userID)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"cart_id": cart.ID, "user_id": userID}), "cart.created")
	return cart, true, nil
}

func (s *service) resolveGuestCart(ctx context.Context, repo Repository, token string) (*Resolution, error) {
	if cartID, ok := s.guestCartID(token); ok {
		cart, err := repo.FindActiveGuest(ctx, cartID)
		if err == nil {
			return &Resolution{CartID: cart.ID}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	cart := &models.Cart{Status: enums.CartStatusCart}
	if err := repo.Create(ctx, cart); err != nil {
		return nil, err
	}
	minted, err := auth.MintGuestCartToken(s.jwt, s.guestTTL, s.now(), cart.ID)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"cart_id": cart.ID, "actor": "guest"}), "cart.created")
	return &Resolution{CartID: cart.ID, GuestToken: minted, Created: true}, nil
}

func (s *service) guestCartID(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	cartID, err := auth.ParseGuestCartToken(s.jwt, token)
	if err != nil {
		return 0, false
	}
	return cartID, true
}

// findActive locates the actor's cart without creating one.
func (s *service) findActive(ctx context.Context, actor Actor) (*models.Cart, error) {
	if actor.Authenticated() {
		return s.repo.FindActiveByUser(ctx, actor.UserID)
	}
	cartID, ok := s.guestCartID(actor.GuestToken)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.repo.FindActiveGuest(ctx, cartID)
}

func (s *service) GetCart(ctx context.Context, actor Actor) (*CartView, error) {
	view := &CartView{Lines: []CartLineView{}}
	cart, err := s.findActive(ctx, actor)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return view, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	rows, err := s.repo.LineRecords(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	cartID := cart.ID
	view.CartID = &cartID
	for _, row := range rows {
		line := lineView(row)
		view.Lines = append(view.Lines, line)
		view.ItemCount += line.Quantity
		view.Subtotal += line.UnitPrice.Times(line.Quantity)
		if line.UnitDiscount != nil {
			view.Discount += line.UnitDiscount.Times(line.Quantity)
		}
		view.Total += line.LineTotal
	}
	return view, nil
}

func lineView(row LineRecord) CartLineView {
	price := money.Cents(row.UnitPriceCents)
	discount := money.Ptr(row.UnitDiscountCents)
	name := ""
	if row.ItemName != nil {
		name = *row.ItemName
	}
	category := ""
	if row.CategoryName != nil {
		category = *row.CategoryName
	}
	return CartLineView{
		LineID:         row.LineID,
		ItemID:         row.ItemID,
		VariantID:      row.VariantID,
		ProductName:    name,
		Quantity:       row.Quantity,
		UnitPrice:      price,
		UnitDiscount:   discount,
		Color:          optionName(row.Color),
		Size:           optionName(row.Size),
		ImageURL:       catalog.FormatImageURL(row.Image),
		CategoryName:   category,
		AvailableStock: row.Stock,
		LineTotal:      money.Net(price, discount).Times(row.Quantity),
	}
}

func optionName(value *string) string {
	if value == nil || *value == "" {
		return notAvailable
	}
	return *value
}

func (s *service) AddLine(ctx context.Context, actor Actor, input AddLineInput) (*MutationResult, error) {
	if input.Quantity <= 0 {
		s.metrics.IncMutation("add", metrics.ResultFailure)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}
	variant, err := s.variants.FindVariant(ctx, input.ItemID, input.Color, input.Size)
	if err != nil {
		s.metrics.IncMutation("add", metrics.ResultFailure)
		return nil, err
	}

	// A cart placed or merged between resolve and the write is no longer
	// writable; resolve again so the line lands in the actor's new cart.
	var res *Resolution
	for attempt := 0; attempt < addLineAttempts; attempt++ {
		res, err = s.ResolveOrCreateCart(ctx, actor)
		if err != nil {
			s.metrics.IncMutation("add", metrics.ResultFailure)
			return nil, err
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := lockOpen(ctx, repo, res.CartID); err != nil {
				return err
			}
			line := &models.LineItem{
				CartID:            res.CartID,
				VariantID:         variant.VariantID,
				Quantity:          input.Quantity,
				UnitPriceCents:    int64(variant.UnitPrice),
				UnitDiscountCents: centsPtr(variant.UnitDiscount),
			}
			if err := repo.UpsertLine(ctx, line); err != nil {
				return err
			}
			return repo.Touch(ctx, res.CartID)
		})
		if !errors.Is(err, errCartClosed) {
			break
		}
		if !actor.Authenticated() {
			actor.GuestToken = ""
		}
	}
	if err != nil {
		s.metrics.IncMutation("add", metrics.ResultFailure)
		return nil, mutationFailed(err, "add cart line")
	}

	s.metrics.IncMutation("add", metrics.ResultSuccess)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_id":    res.CartID,
		"variant_id": variant.VariantID,
		"quantity":   input.Quantity,
		"actor":      actor.Kind(),
	})
	s.logg.Info(logCtx, "cart.line_added")
	return &MutationResult{Success: true, Message: MessageItemAdded, CartID: res.CartID, GuestToken: res.GuestToken}, nil
}

func (s *service) SetLineQuantity(ctx context.Context, actor Actor, lineID int64, quantity int) (*MutationResult, error) {
	if quantity <= 0 {
		return s.removeLine(ctx, actor, lineID, "set_quantity")
	}
	cart, err := s.activeCartFor(ctx, actor)
	if err != nil {
		s.metrics.IncMutation("set_quantity", metrics.ResultFailure)
		return nil, err
	}

	var affected int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := lockOpen(ctx, repo, cart.ID); err != nil {
			return err
		}
		n, err := repo.UpdateLineQuantity(ctx, cart.ID, lineID, quantity)
		if err != nil {
			return err
		}
		affected = n
		if n == 0 {
			return nil
		}
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		s.metrics.IncMutation("set_quantity", metrics.ResultFailure)
		return nil, mutationFailed(err, "update cart line")
	}
	if affected == 0 {
		s.metrics.IncMutation("set_quantity", metrics.ResultFailure)
		return nil, lineNotFound(lineID)
	}
	s.metrics.IncMutation("set_quantity", metrics.ResultSuccess)
	return &MutationResult{Success: true, Message: MessageLineUpdated, CartID: cart.ID}, nil
}

func (s *service) RemoveLine(ctx context.Context, actor Actor, lineID int64) (*MutationResult, error) {
	return s.removeLine(ctx, actor, lineID, "remove")
}

func (s *service) removeLine(ctx context.Context, actor Actor, lineID int64, op string) (*MutationResult, error) {
	cart, err := s.activeCartFor(ctx, actor)
	if err != nil {
		s.metrics.IncMutation(op, metrics.ResultFailure)
		return nil, err
	}

	var affected int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := lockOpen(ctx, repo, cart.ID); err != nil {
			return err
		}
		n, err := repo.DeleteLine(ctx, cart.ID, lineID)
		if err != nil {
			return err
		}
		affected = n
		if n == 0 {
			return nil
		}
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		s.metrics.IncMutation(op, metrics.ResultFailure)
		return nil, mutationFailed(err, "remove cart line")
	}
	if affected == 0 {
		s.metrics.IncMutation(op, metrics.ResultFailure)
		return nil, lineNotFound(lineID)
	}
	s.metrics.IncMutation(op, metrics.ResultSuccess)
	return &MutationResult{Success: true, Message: MessageLineRemoved, CartID: cart.ID}, nil
}

func (s *service) activeCartFor(ctx context.Context, actor Actor) (*models.Cart, error) {
	cart, err := s.findActive(ctx, actor)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// lockOpen holds the cart row for the rest of the transaction, failing with
// errCartClosed once the cart has been placed or merged.
func lockOpen(ctx context.Context, repo Repository, cartID int64) error {
	_, err := repo.LockActive(ctx, cartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errCartClosed
	}
	return err
}

func mutationFailed(err error, message string) error {
	if errors.Is(err, errCartClosed) {
		return errCartClosed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func lineNotFound(lineID int64) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"line_id": lineID})
}

func (s *service) MergeGuestToken(ctx context.Context, guestToken string, userID int64) (*MergeResult, error) {
	cartID, ok := s.guestCartID(guestToken)
	if !ok {
		s.metrics.IncMerge(metrics.ResultNoop)
		return &MergeResult{}, nil
	}
	return s.MergeIntoUserCart(ctx, cartID, userID)
}

func (s *service) MergeIntoUserCart(ctx context.Context, guestCartID, userID int64) (*MergeResult, error) {
	if userID <= 0 {
		s.metrics.IncMerge(metrics.ResultFailure)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	result := &MergeResult{GuestCartID: guestCartID}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		userCart, _, err := s.resolveUserCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		result.UserCartID = userCart.ID
		if userCart.ID == guestCartID {
			return nil
		}
		if err := lockOpen(ctx, repo, userCart.ID); err != nil {
			return err
		}

		claimed, err := repo.MarkMerged(ctx, guestCartID)
		if err != nil {
			return err
		}
		if claimed == 0 {
			return nil
		}

		lines, err := repo.ListLines(ctx, guestCartID)
		if err != nil {
			return err
		}
		for _, guestLine := range lines {
			merged := &models.LineItem{
				CartID:            userCart.ID,
				VariantID:         guestLine.VariantID,
				Quantity:          guestLine.Quantity,
				UnitPriceCents:    guestLine.UnitPriceCents,
				UnitDiscountCents: guestLine.UnitDiscountCents,
			}
			if err := repo.UpsertLine(ctx, merged); err != nil {
				return err
			}
		}
		if err := repo.Touch(ctx, userCart.ID); err != nil {
			return err
		}

		result.Merged = true
		result.LinesMerged = len(lines)
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateCart,
			AggregateID:   userCart.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Kind: "user"},
			Data: payloads.CartMergedEvent{
				GuestCartID: guestCartID,
				UserCartID:  userCart.ID,
				UserID:      userID,
				LinesMerged: len(lines),
			},
		})
	})
	if err != nil {
		s.metrics.IncMerge(metrics.ResultFailure)
		return nil, mutationFailed(err, "merge guest cart")
	}

	if !result.Merged {
		s.metrics.IncMerge(metrics.ResultNoop)
		return result, nil
	}
	s.metrics.IncMerge(metrics.ResultSuccess)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"guest_cart_id": guestCartID,
		"cart_id":       result.UserCartID,
		"user_id":       userID,
		"lines_merged":  result.LinesMerged,
	})
	s.logg.Info(logCtx, "cart.merged")
	return result, nil
}

func centsPtr(c *money.Cents) *int64 {
	if c == nil {
		return nil
	}
	v := int64(*c)
	return &v
}
