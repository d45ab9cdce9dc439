package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"rentsafi/server/internal/models"
	"rentsafi/server/internal/query"
	"rentsafi/server/internal/services"
)

// --- Mocks ---

// MockPropertyService implements services.IPropertyService
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) List(ctx context.Context, params services.ListParams) ([]models.Property, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Property), args.Int(1), args.Error(2)
}

func (m *MockPropertyService) Search(ctx context.Context, filter query.SearchFilter) ([]models.Property, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyService) FindByID(ctx context.Context, propertyID primitive.ObjectID, countView bool) (*models.Property, error) {
	args := m.Called(ctx, propertyID, countView)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) Create(ctx context.Context, landlordID primitive.ObjectID, property *models.Property) (*models.Property, error) {
	args := m.Called(ctx, landlordID, property)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) Update(ctx context.Context, propertyID primitive.ObjectID, principal services.Principal, updates map[string]interface{}) (*models.Property, error) {
	args := m.Called(ctx, propertyID, principal, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyService) Delete(ctx context.Context, propertyID primitive.ObjectID, principal services.Principal) error {
	args := m.Called(ctx, propertyID, principal)
	return args.Error(0)
}

func (m *MockPropertyService) AddImage(ctx context.Context, propertyID primitive.ObjectID, image models.PropertyImage) error {
	args := m.Called(ctx, propertyID, image)
	return args.Error(0)
}

func (m *MockPropertyService) Report(ctx context.Context, propertyID, userID primitive.ObjectID, reason, description string) error {
	args := m.Called(ctx, propertyID, userID, reason, description)
	return args.Error(0)
}

func (m *MockPropertyService) IncFavoriteCount(ctx context.Context, propertyID primitive.ObjectID, delta int) error {
	args := m.Called(ctx, propertyID, delta)
	return args.Error(0)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password, phone string, role models.Role) (*models.User, error) {
	args := m.Called(ctx, name, email, password, phone, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateDetails(ctx context.Context, userID primitive.ObjectID, updates map[string]interface{}) (*models.User, error) {
	args := m.Called(ctx, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, currentPassword, newPassword string) error {
	args := m.Called(ctx, userID, currentPassword, newPassword)
	return args.Error(0)
}

func (m *MockUserService) AddFavorite(ctx context.Context, userID, propertyID primitive.ObjectID) error {
	args := m.Called(ctx, userID, propertyID)
	return args.Error(0)
}

func (m *MockUserService) RemoveFavorite(ctx context.Context, userID, propertyID primitive.ObjectID) error {
	args := m.Called(ctx, userID, propertyID)
	return args.Error(0)
}

// MockMessageService implements services.IMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, senderID primitive.ObjectID, message *models.Message) (*models.Message, error) {
	args := m.Called(ctx, senderID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) Inbox(ctx context.Context, userID primitive.ObjectID, window query.Window) ([]models.Message, int, error) {
	args := m.Called(ctx, userID, window)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Message), args.Int(1), args.Error(2)
}

func (m *MockMessageService) Sent(ctx context.Context, userID primitive.ObjectID, window query.Window) ([]models.Message, int, error) {
	args := m.Called(ctx, userID, window)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Message), args.Int(1), args.Error(2)
}

func (m *MockMessageService) FindByID(ctx context.Context, messageID, userID primitive.ObjectID) (*models.Message, error) {
	args := m.Called(ctx, messageID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, messageID, userID primitive.ObjectID) (*models.Message, error) {
	args := m.Called(ctx, messageID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) UpdateViewingStatus(ctx context.Context, messageID, userID primitive.ObjectID, status models.ViewingStatus) (*models.Message, error) {
	args := m.Called(ctx, messageID, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, landlordID, propertyID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, landlordID, propertyID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	callArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		callArgs = append(callArgs, opt)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
