package service

import (
	"context"
	"io"
	"testing"
	"time"

	"proviant/internal/database"
	"proviant/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newItemService(repo *mockRepo) *ItemService {
	logger := zerolog.New(io.Discard)
	return NewItemService(repo, models.DefaultCatalog(), nil, nil, nil, &logger)
}

func milkInput() models.ItemInput {
	return models.ItemInput{
		InventoryID: 7,
		Name:        "Молоко",
		Category:    "Молочное",
		Quantity:    1,
		Unit:        "шт",
	}
}

func storedMilk(version int64) models.Item {
	return models.Item{
		ID:          10,
		InventoryID: 7,
		UserID:      1,
		Name:        "Молоко",
		Category:    "Молочное",
		Quantity:    2,
		Unit:        "шт",
		Version:     version,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateValidation(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*models.ItemInput)
		wantErr error
	}{
		{"EmptyName", func(in *models.ItemInput) { in.Name = "   " }, database.ErrEmptyName},
		{"ZeroQuantity", func(in *models.ItemInput) { in.Quantity = 0 }, database.ErrInvalidQuantity},
		{"NegativeQuantity", func(in *models.ItemInput) { in.Quantity = -1 }, database.ErrInvalidQuantity},
		{"UnknownCategory", func(in *models.ItemInput) { in.Category = "Электроника" }, database.ErrInvalidCategory},
		{"UnitNotInCategory", func(in *models.ItemInput) { in.Category = "Мясо"; in.Unit = "л" }, database.ErrUnitNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepo)
			svc := newItemService(repo)

			input := milkInput()
			tc.mutate(&input)

			res, err := svc.Create(ctx, user, input, models.DecisionNone)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, res)
			// Отбраковка происходит до любого похода в хранилище.
			repo.AssertNotCalled(t, "ListInventoryItems", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateNew(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	ctx := context.Background()

	repo := new(mockRepo)
	alerts := new(mockAlerts)
	bus := new(mockEventBus)
	syncw := new(mockSyncWorker)
	logger := zerolog.New(io.Discard)
	svc := NewItemService(repo, models.DefaultCatalog(), alerts, bus, syncw, &logger)

	repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{}, nil)
	repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7}, nil)
	repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Run(func(args mock.Arguments) {
		item := args.Get(1).(*models.Item)
		item.ID = 42
		item.Version = 1
	}).Return(nil)
	repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").
		Return([]models.Group{{ID: 3, Name: "Завтрак", Category: "Молочное"}}, nil)
	alerts.On("ScheduleForItem", mock.Anything, user, mock.AnythingOfType("*models.Item"), mock.Anything).
		Return("alert-1", nil)
	bus.On("PublishJSON", "item_created", mock.Anything).Return(nil)
	syncw.On("EnqueueTask", mock.Anything, "upsert_item", int64(42), mock.Anything).Return(nil)

	input := milkInput()
	// Категория приводится к написанию каталога.
	input.Category = "молочное"

	res, err := svc.Create(ctx, user, input, models.DecisionNone)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, res.Outcome)
	require.NotNil(t, res.Item)
	assert.Equal(t, int64(42), res.Item.ID)
	assert.Equal(t, int64(1), res.Item.UserID)
	assert.Equal(t, "Молочное", res.Item.Category)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "Завтрак", res.Suggestions[0].Name)

	repo.AssertExpectations(t)
	alerts.AssertExpectations(t)
	bus.AssertExpectations(t)
	syncw.AssertExpectations(t)
}

func TestCreateDefaultInventory(t *testing.T) {
	user := &models.User{ID: 1}
	ctx := context.Background()

	repo := new(mockRepo)
	svc := newItemService(repo)

	repo.On("EnsureDefaultInventory", mock.Anything, int64(1)).Return(&models.Inventory{ID: 5}, nil)
	repo.On("ListInventoryItems", mock.Anything, int64(5)).Return([]models.Item{}, nil)
	repo.On("GetInventory", mock.Anything, int64(5)).Return(&models.Inventory{ID: 5}, nil)
	repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Return(nil)
	repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").Return([]models.Group{}, nil)

	input := milkInput()
	input.InventoryID = 0

	res, err := svc.Create(ctx, user, input, models.DecisionNone)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Item.InventoryID)
	repo.AssertExpectations(t)
}

func TestCreatePausesOnDuplicate(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	ctx := context.Background()

	t.Run("ReportsMergeable", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		existing := storedMilk(3)
		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{existing}, nil)

		input := milkInput()
		// Дубликат ловится без учёта регистра и пробелов по краям.
		input.Name = "  молоко "

		res, err := svc.Create(ctx, user, input, models.DecisionNone)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeDuplicate, res.Outcome)
		require.NotNil(t, res.Duplicate)
		assert.Equal(t, int64(10), res.Duplicate.Existing.ID)
		assert.Equal(t, int64(3), res.Duplicate.Existing.Version)
		assert.True(t, res.Duplicate.CanMerge)
		assert.Nil(t, res.Item)

		repo.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateItemWithVersion", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnitMismatchNotMergeable", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		existing := storedMilk(3)
		existing.Unit = "л"
		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{existing}, nil)

		res, err := svc.Create(ctx, user, milkInput(), models.DecisionNone)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeDuplicate, res.Outcome)
		assert.False(t, res.Duplicate.CanMerge)
		assert.Equal(t, "единицы измерения не совпадают", res.Duplicate.Reason)
	})
}

func TestCreateWithDecision(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	ctx := context.Background()

	t.Run("MergeSumsQuantities", func(t *testing.T) {
		repo := new(mockRepo)
		alerts := new(mockAlerts)
		logger := zerolog.New(io.Discard)
		svc := NewItemService(repo, models.DefaultCatalog(), alerts, nil, nil, &logger)

		existing := storedMilk(3)
		existingAt := day(2026, 4, 15)
		existing.ExpiresAt = &existingAt
		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{existing}, nil)

		var merged models.Item
		repo.On("UpdateItemWithVersion", mock.Anything, mock.AnythingOfType("*models.Item"), int64(3)).
			Run(func(args mock.Arguments) { merged = *args.Get(1).(*models.Item) }).
			Return(nil)
		alerts.On("ScheduleForItem", mock.Anything, user, mock.AnythingOfType("*models.Item"), mock.Anything).
			Return("alert-1", nil)

		input := milkInput()
		incomingAt := day(2026, 4, 12)
		input.ExpiresAt = &incomingAt
		input.Description = "открыта"

		res, err := svc.Create(ctx, user, input, models.DecisionMerge)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeMerged, res.Outcome)

		assert.InDelta(t, 3.0, merged.Quantity, 1e-9)
		assert.Equal(t, "открыта", merged.Description)
		// Более ранний входящий срок вытесняет сохранённый.
		require.NotNil(t, merged.ExpiresAt)
		assert.True(t, merged.ExpiresAt.Equal(incomingAt))

		repo.AssertExpectations(t)
		alerts.AssertExpectations(t)
	})

	t.Run("MergeKeepsEarlierExpiry", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		existing := storedMilk(3)
		existingAt := day(2026, 4, 15)
		existing.ExpiresAt = &existingAt
		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{existing}, nil)

		var merged models.Item
		repo.On("UpdateItemWithVersion", mock.Anything, mock.AnythingOfType("*models.Item"), int64(3)).
			Run(func(args mock.Arguments) { merged = *args.Get(1).(*models.Item) }).
			Return(nil)

		input := milkInput()
		laterAt := day(2026, 4, 20)
		input.ExpiresAt = &laterAt

		_, err := svc.Create(ctx, user, input, models.DecisionMerge)
		require.NoError(t, err)
		// Поздний входящий срок не двигает дату порчи.
		require.NotNil(t, merged.ExpiresAt)
		assert.True(t, merged.ExpiresAt.Equal(existingAt))
	})

	t.Run("MergeAdoptsDateWhenStoredHasNone", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		existing := storedMilk(3)
		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{existing}, nil)

		var merged models.Item
		repo.On("UpdateItemWithVersion", mock.Anything, mock.AnythingOfType("*models.Item"), int64(3)).
			Run(func(args mock.Arguments) { merged = *args.Get(1).(*models.Item) }).
			Return(nil)

		input := milkInput()
		incomingAt := day(2026, 4, 12)
		input.ExpiresAt = &incomingAt

		_, err := svc.Create(ctx, user, input, models.DecisionMerge)
		require.NoError(t, err)
		require.NotNil(t, merged.ExpiresAt)
		assert.True(t, merged.ExpiresAt.Equal(incomingAt))
	})

	t.Run("CreateAnyway", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{storedMilk(3)}, nil)
		repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7}, nil)
		repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Return(nil)
		repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").Return([]models.Group{}, nil)

		res, err := svc.Create(ctx, user, milkInput(), models.DecisionCreateAnyway)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCreated, res.Outcome)
		repo.AssertExpectations(t)
	})

	t.Run("Cancel", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{storedMilk(3)}, nil)

		res, err := svc.Create(ctx, user, milkInput(), models.DecisionCancel)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCancelled, res.Outcome)
		require.NotNil(t, res.Duplicate)
		repo.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateItemWithVersion", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownDecision", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{storedMilk(3)}, nil)

		_, err := svc.Create(ctx, user, milkInput(), models.CreateDecision("explode"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown create decision")
	})
}

func TestResolveDuplicate(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	ctx := context.Background()

	t.Run("MergePinsReportedVersion", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		report := &models.DuplicateReport{
			Existing: storedMilk(3),
			Incoming: milkInput(),
			CanMerge: true,
		}

		// Слияние применяется к версии из отчёта, не к свежей.
		repo.On("UpdateItemWithVersion", mock.Anything, mock.AnythingOfType("*models.Item"), int64(3)).Return(nil)

		res, err := svc.ResolveDuplicate(ctx, user, report, models.DecisionMerge)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeMerged, res.Outcome)
		repo.AssertExpectations(t)
	})

	t.Run("StaleVersionFails", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		report := &models.DuplicateReport{
			Existing: storedMilk(3),
			Incoming: milkInput(),
			CanMerge: true,
		}

		// Позицию уже поменяли (или это повтор того же решения).
		repo.On("UpdateItemWithVersion", mock.Anything, mock.AnythingOfType("*models.Item"), int64(3)).
			Return(database.ErrConcurrentModification)

		_, err := svc.ResolveDuplicate(ctx, user, report, models.DecisionMerge)
		require.ErrorIs(t, err, database.ErrConcurrentModification)
	})

	t.Run("MergeNotAllowed", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		report := &models.DuplicateReport{
			Existing: storedMilk(3),
			Incoming: milkInput(),
			CanMerge: false,
			Reason:   "единицы измерения не совпадают",
		}

		_, err := svc.ResolveDuplicate(ctx, user, report, models.DecisionMerge)
		require.ErrorIs(t, err, database.ErrMergeNotAllowed)
		assert.Contains(t, err.Error(), "единицы измерения не совпадают")
		repo.AssertNotCalled(t, "UpdateItemWithVersion", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CreateAnyway", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7}, nil)
		repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Return(nil)
		repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").Return([]models.Group{}, nil)

		report := &models.DuplicateReport{Existing: storedMilk(3), Incoming: milkInput(), CanMerge: true}

		res, err := svc.ResolveDuplicate(ctx, user, report, models.DecisionCreateAnyway)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCreated, res.Outcome)
		repo.AssertExpectations(t)
	})

	t.Run("CreateAnywayRevalidates", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		broken := milkInput()
		broken.Name = ""
		report := &models.DuplicateReport{Existing: storedMilk(3), Incoming: broken, CanMerge: true}

		_, err := svc.ResolveDuplicate(ctx, user, report, models.DecisionCreateAnyway)
		require.ErrorIs(t, err, database.ErrEmptyName)
		repo.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
	})

	t.Run("Cancel", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		report := &models.DuplicateReport{Existing: storedMilk(3), Incoming: milkInput(), CanMerge: true}

		res, err := svc.ResolveDuplicate(ctx, user, report, models.DecisionCancel)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCancelled, res.Outcome)
	})

	t.Run("NilReport", func(t *testing.T) {
		svc := newItemService(new(mockRepo))

		_, err := svc.ResolveDuplicate(ctx, user, nil, models.DecisionMerge)
		require.Error(t, err)
	})
}

func TestCreateCapacity(t *testing.T) {
	user := &models.User{ID: 1}
	ctx := context.Background()

	t.Run("Full", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{}, nil)
		repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7, MaxItems: 2}, nil)
		repo.On("CountItems", mock.Anything, int64(7)).Return(2, nil)

		_, err := svc.Create(ctx, user, milkInput(), models.DecisionNone)
		require.ErrorIs(t, err, database.ErrInventoryFull)
		repo.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
	})

	t.Run("BelowLimit", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{}, nil)
		repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7, MaxItems: 2}, nil)
		repo.On("CountItems", mock.Anything, int64(7)).Return(1, nil)
		repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Return(nil)
		repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").Return([]models.Group{}, nil)

		res, err := svc.Create(ctx, user, milkInput(), models.DecisionNone)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCreated, res.Outcome)
	})

	t.Run("Unlimited", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{}, nil)
		repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7}, nil)
		repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Return(nil)
		repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").Return([]models.Group{}, nil)

		_, err := svc.Create(ctx, user, milkInput(), models.DecisionNone)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "CountItems", mock.Anything, mock.Anything)
	})
}

func TestCreateSuggestions(t *testing.T) {
	user := &models.User{ID: 1}
	ctx := context.Background()

	t.Run("LookupFailureDoesNotBlock", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("ListInventoryItems", mock.Anything, int64(7)).Return([]models.Item{}, nil)
		repo.On("GetInventory", mock.Anything, int64(7)).Return(&models.Inventory{ID: 7}, nil)
		repo.On("CreateItem", mock.Anything, mock.AnythingOfType("*models.Item")).Return(nil)
		repo.On("ListGroupsByCategory", mock.Anything, int64(1), "Молочное").Return(nil, assert.AnError)

		res, err := svc.Create(ctx, user, milkInput(), models.DecisionNone)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeCreated, res.Outcome)
		assert.Empty(t, res.Suggestions)
	})
}

func TestUpdateItemFlow(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	ctx := context.Background()

	t.Run("RebuildsAlerts", func(t *testing.T) {
		repo := new(mockRepo)
		alerts := new(mockAlerts)
		bus := new(mockEventBus)
		syncw := new(mockSyncWorker)
		logger := zerolog.New(io.Discard)
		svc := NewItemService(repo, models.DefaultCatalog(), alerts, bus, syncw, &logger)

		item := storedMilk(3)
		repo.On("UpdateItem", mock.Anything, &item).Return(nil)
		// Правка может увести срок из окна, поэтому пересборка целиком.
		alerts.On("RefreshAllForUser", mock.Anything, user).Return(&models.RefreshSummary{}, nil)
		bus.On("PublishJSON", "item_updated", mock.Anything).Return(nil)
		syncw.On("EnqueueTask", mock.Anything, "upsert_item", int64(10), mock.Anything).Return(nil)

		err := svc.Update(ctx, user, &item)
		require.NoError(t, err)

		repo.AssertExpectations(t)
		alerts.AssertExpectations(t)
		bus.AssertExpectations(t)
		syncw.AssertExpectations(t)
	})

	t.Run("AlertRefreshFailureDoesNotFailUpdate", func(t *testing.T) {
		repo := new(mockRepo)
		alerts := new(mockAlerts)
		logger := zerolog.New(io.Discard)
		svc := NewItemService(repo, models.DefaultCatalog(), alerts, nil, nil, &logger)

		item := storedMilk(3)
		repo.On("UpdateItem", mock.Anything, &item).Return(nil)
		alerts.On("RefreshAllForUser", mock.Anything, user).Return(nil, assert.AnError)

		err := svc.Update(ctx, user, &item)
		require.NoError(t, err)
	})

	t.Run("RejectsInvalidUnit", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		item := storedMilk(3)
		item.Category = "Мясо"
		item.Unit = "л"

		err := svc.Update(ctx, user, &item)
		require.ErrorIs(t, err, database.ErrUnitNotAllowed)
		repo.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
	})

	t.Run("CanonicalizesCategory", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		item := storedMilk(3)
		item.Category = "молочное"
		repo.On("UpdateItem", mock.Anything, &item).Return(nil)

		err := svc.Update(ctx, user, &item)
		require.NoError(t, err)
		assert.Equal(t, "Молочное", item.Category)
	})
}

func TestDeleteItemFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnershipMismatch", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		foreign := storedMilk(1)
		foreign.UserID = 2
		repo.On("GetItem", mock.Anything, int64(10)).Return(&foreign, nil)

		err := svc.Delete(ctx, 1, 10)
		require.ErrorIs(t, err, database.ErrItemNotFound)
		repo.AssertNotCalled(t, "DeleteItem", mock.Anything, mock.Anything)
	})

	t.Run("CancelsAlertAndSyncs", func(t *testing.T) {
		repo := new(mockRepo)
		alerts := new(mockAlerts)
		bus := new(mockEventBus)
		syncw := new(mockSyncWorker)
		logger := zerolog.New(io.Discard)
		svc := NewItemService(repo, models.DefaultCatalog(), alerts, bus, syncw, &logger)

		item := storedMilk(1)
		repo.On("GetItem", mock.Anything, int64(10)).Return(&item, nil)
		repo.On("DeleteItem", mock.Anything, int64(10)).Return(nil)
		alerts.On("CancelForItem", mock.Anything, int64(1), int64(10)).Return(nil)
		bus.On("PublishJSON", "item_deleted", mock.Anything).Return(nil)
		syncw.On("EnqueueTask", mock.Anything, "delete_item", int64(10), mock.Anything).Return(nil)

		err := svc.Delete(ctx, 1, 10)
		require.NoError(t, err)

		repo.AssertExpectations(t)
		alerts.AssertExpectations(t)
		bus.AssertExpectations(t)
		syncw.AssertExpectations(t)
	})
}

func TestBulkAddToGroup(t *testing.T) {
	ctx := context.Background()
	group := &models.Group{ID: 20, UserID: 1, Name: "Завтрак", Category: "Молочное"}

	ownItem := func(id int64) *models.Item {
		item := storedMilk(1)
		item.ID = id
		return &item
	}

	t.Run("AllAdded", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetGroup", mock.Anything, int64(20)).Return(group, nil)
		repo.On("GetItem", mock.Anything, int64(10)).Return(ownItem(10), nil)
		repo.On("GetItem", mock.Anything, int64(11)).Return(ownItem(11), nil)
		repo.On("AddItemToGroup", mock.Anything, int64(10), int64(20)).Return(nil)
		repo.On("AddItemToGroup", mock.Anything, int64(11), int64(20)).Return(nil)

		res, err := svc.BulkAddToGroup(ctx, 1, []int64{10, 11}, 20)
		require.NoError(t, err)
		assert.Equal(t, models.BulkAllAdded, res.Outcome)
		assert.Equal(t, 2, res.Added)
		assert.Equal(t, 0, res.AlreadyPresent)
	})

	t.Run("PartiallyAdded", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetGroup", mock.Anything, int64(20)).Return(group, nil)
		repo.On("GetItem", mock.Anything, int64(10)).Return(ownItem(10), nil)
		repo.On("GetItem", mock.Anything, int64(11)).Return(ownItem(11), nil)
		repo.On("AddItemToGroup", mock.Anything, int64(10), int64(20)).Return(database.ErrAlreadyInGroup)
		repo.On("AddItemToGroup", mock.Anything, int64(11), int64(20)).Return(nil)

		res, err := svc.BulkAddToGroup(ctx, 1, []int64{10, 11}, 20)
		require.NoError(t, err)
		assert.Equal(t, models.BulkPartiallyAdded, res.Outcome)
		assert.Equal(t, 1, res.Added)
		assert.Equal(t, 1, res.AlreadyPresent)
	})

	t.Run("AllAlreadyPresent", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetGroup", mock.Anything, int64(20)).Return(group, nil)
		repo.On("GetItem", mock.Anything, int64(10)).Return(ownItem(10), nil)
		repo.On("AddItemToGroup", mock.Anything, int64(10), int64(20)).Return(database.ErrAlreadyInGroup)

		res, err := svc.BulkAddToGroup(ctx, 1, []int64{10}, 20)
		require.NoError(t, err)
		assert.Equal(t, models.BulkAllPresent, res.Outcome)
	})

	t.Run("OtherErrorAborts", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetGroup", mock.Anything, int64(20)).Return(group, nil)
		repo.On("GetItem", mock.Anything, int64(10)).Return(ownItem(10), nil)
		repo.On("GetItem", mock.Anything, int64(11)).Return(ownItem(11), nil)
		repo.On("AddItemToGroup", mock.Anything, int64(10), int64(20)).Return(nil)
		repo.On("AddItemToGroup", mock.Anything, int64(11), int64(20)).Return(assert.AnError)

		res, err := svc.BulkAddToGroup(ctx, 1, []int64{10, 11}, 20)
		require.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, res)
		// Уже добавленное не откатывается.
		repo.AssertNotCalled(t, "RemoveItemFromGroup", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ForeignGroup", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		foreign := &models.Group{ID: 20, UserID: 2, Name: "Чужая"}
		repo.On("GetGroup", mock.Anything, int64(20)).Return(foreign, nil)

		_, err := svc.BulkAddToGroup(ctx, 1, []int64{10}, 20)
		require.ErrorIs(t, err, database.ErrGroupNotFound)
	})

	t.Run("ForeignItemAborts", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		foreign := storedMilk(1)
		foreign.UserID = 2
		repo.On("GetGroup", mock.Anything, int64(20)).Return(group, nil)
		repo.On("GetItem", mock.Anything, int64(10)).Return(&foreign, nil)

		_, err := svc.BulkAddToGroup(ctx, 1, []int64{10}, 20)
		require.ErrorIs(t, err, database.ErrItemNotFound)
		repo.AssertNotCalled(t, "AddItemToGroup", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBulkDelete(t *testing.T) {
	ctx := context.Background()

	ownItem := func(id int64) *models.Item {
		item := storedMilk(1)
		item.ID = id
		return &item
	}

	t.Run("AllDeleted", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetItem", mock.Anything, int64(10)).Return(ownItem(10), nil)
		repo.On("GetItem", mock.Anything, int64(11)).Return(ownItem(11), nil)
		repo.On("DeleteItem", mock.Anything, int64(10)).Return(nil)
		repo.On("DeleteItem", mock.Anything, int64(11)).Return(nil)

		deleted, err := svc.BulkDelete(ctx, 1, []int64{10, 11})
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
	})

	t.Run("AggregatesFailures", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newItemService(repo)

		repo.On("GetItem", mock.Anything, int64(10)).Return(ownItem(10), nil)
		repo.On("GetItem", mock.Anything, int64(11)).Return(nil, assert.AnError)
		repo.On("GetItem", mock.Anything, int64(12)).Return(ownItem(12), nil)
		repo.On("DeleteItem", mock.Anything, int64(10)).Return(nil)
		repo.On("DeleteItem", mock.Anything, int64(12)).Return(nil)

		deleted, err := svc.BulkDelete(ctx, 1, []int64{10, 11, 12})
		// Ошибка одной позиции не останавливает остальные.
		assert.Equal(t, 2, deleted)
		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to delete 1 of 3 items")
	})
}

func TestListExpiring(t *testing.T) {
	ctx := context.Background()
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	repo := new(mockRepo)
	svc := newItemService(repo)
	svc.now = func() time.Time { return ref }

	items := []models.Item{
		expiringItem(1, "Кефир", ref.AddDate(0, 0, -1)),
		expiringItem(2, "Молоко", ref),
		expiringItem(3, "Творог", ref.AddDate(0, 0, 3)),
		expiringItem(4, "Тушёнка", ref.AddDate(0, 0, 30)),
		{ID: 5, UserID: 1, Name: "Соль", Category: "Прочее", Quantity: 1, Unit: "упак"},
	}
	repo.On("ListItems", mock.Anything, int64(1)).Return(items, nil)

	got, err := svc.ListExpiring(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Просроченное тоже в списке, бессрочное и дальнее нет.
	assert.Equal(t, "Кефир", got[0].Name)
	assert.Equal(t, "Молоко", got[1].Name)
	assert.Equal(t, "Творог", got[2].Name)
}
