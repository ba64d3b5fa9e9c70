package service

import (
	"context"
	"time"

	"proviant/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateItem(ctx context.Context, i *models.Item) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockRepo) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}
func (m *mockRepo) ListItems(ctx context.Context, userID int64) ([]models.Item, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}
func (m *mockRepo) ListInventoryItems(ctx context.Context, inventoryID int64) ([]models.Item, error) {
	args := m.Called(ctx, inventoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}
func (m *mockRepo) UpdateItem(ctx context.Context, i *models.Item) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockRepo) UpdateItemWithVersion(ctx context.Context, i *models.Item, v int64) error {
	return m.Called(ctx, i, v).Error(0)
}
func (m *mockRepo) DeleteItem(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	return m.Called(ctx, inv).Error(0)
}
func (m *mockRepo) GetInventory(ctx context.Context, id int64) (*models.Inventory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inventory), args.Error(1)
}
func (m *mockRepo) ListInventories(ctx context.Context, userID int64) ([]models.Inventory, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Inventory), args.Error(1)
}
func (m *mockRepo) EnsureDefaultInventory(ctx context.Context, userID int64) (*models.Inventory, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inventory), args.Error(1)
}
func (m *mockRepo) CountItems(ctx context.Context, inventoryID int64) (int, error) {
	args := m.Called(ctx, inventoryID)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) CreateGroup(ctx context.Context, g *models.Group) error {
	return m.Called(ctx, g).Error(0)
}
func (m *mockRepo) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Group), args.Error(1)
}
func (m *mockRepo) ListGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Group), args.Error(1)
}
func (m *mockRepo) ListGroupsByCategory(ctx context.Context, userID int64, category string) ([]models.Group, error) {
	args := m.Called(ctx, userID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Group), args.Error(1)
}
func (m *mockRepo) DeleteGroup(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) AddItemToGroup(ctx context.Context, itemID, groupID int64) error {
	return m.Called(ctx, itemID, groupID).Error(0)
}
func (m *mockRepo) RemoveItemFromGroup(ctx context.Context, itemID, groupID int64) error {
	return m.Called(ctx, itemID, groupID).Error(0)
}
func (m *mockRepo) ListGroupItems(ctx context.Context, groupID int64) ([]models.Item, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}
func (m *mockRepo) CountGroupItems(ctx context.Context, groupID int64) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) CreateOrUpdateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) GetUserByTelegramID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) UpdateUserActivity(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) GetAllUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, tt string, itemID int64, i *models.Item) error {
	return m.Called(ctx, tt, itemID, i).Error(0)
}
func (m *mockSyncWorker) EnqueueReplaceAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockAlerts struct {
	mock.Mock
}

func (m *mockAlerts) ScheduleForItem(ctx context.Context, u *models.User, i *models.Item, ref time.Time) (string, error) {
	args := m.Called(ctx, u, i, ref)
	return args.String(0), args.Error(1)
}
func (m *mockAlerts) CancelForItem(ctx context.Context, userID, itemID int64) error {
	return m.Called(ctx, userID, itemID).Error(0)
}
func (m *mockAlerts) RefreshAllForUser(ctx context.Context, u *models.User) (*models.RefreshSummary, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshSummary), args.Error(1)
}
func (m *mockAlerts) CancelAllForUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
