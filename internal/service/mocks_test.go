package service

import (
	"context"
	"sort"
	"sync"

	"app/internal/model"
)

// In-memory fakes for the repository and storage interfaces. They are
// concurrency-safe so the flow tests can hammer them from multiple
// goroutines.

type mockUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	deductErr error
	addErr    error
}

func newMockUserRepo(users ...*model.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		copied := *u
		m.users[u.ID] = &copied
	}
	return m
}

func (m *mockUserRepo) get(id string) *model.User {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied
	}
	return nil
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id), nil
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *mockUserRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.StripeCustomerID = &customerID
	}
	return nil
}

func (m *mockUserRepo) DeductCredits(ctx context.Context, userID string, amount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deductErr != nil {
		return false, m.deductErr
	}
	u, ok := m.users[userID]
	if !ok || u.Credits < amount {
		return false, nil
	}
	u.Credits -= amount
	return true, nil
}

func (m *mockUserRepo) AddCredits(ctx context.Context, userID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	if u, ok := m.users[userID]; ok {
		u.Credits += amount
	}
	return nil
}

func (m *mockUserRepo) SetSubscriptionTier(ctx context.Context, userID, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.SubscriptionTier = tier
	}
	return nil
}

func (m *mockUserRepo) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *mockUserRepo) credits(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Credits
	}
	return -1
}

type mockImageRepo struct {
	mu        sync.Mutex
	images    map[string]*model.Image
	order     []string
	createErr error
}

func newMockImageRepo(images ...*model.Image) *mockImageRepo {
	m := &mockImageRepo{images: make(map[string]*model.Image)}
	for _, img := range images {
		copied := *img
		m.images[img.ID] = &copied
		m.order = append(m.order, img.ID)
	}
	return m
}

func (m *mockImageRepo) CreateImage(ctx context.Context, img *model.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := *img
	m.images[img.ID] = &copied
	m.order = append(m.order, img.ID)
	return nil
}

func (m *mockImageRepo) GetImageByID(ctx context.Context, id string) (*model.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img, ok := m.images[id]; ok {
		copied := *img
		return &copied, nil
	}
	return nil, nil
}

func (m *mockImageRepo) ListImagesByUserID(ctx context.Context, userID, imageType string) ([]model.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Image
	// Iterate newest first.
	for i := len(m.order) - 1; i >= 0; i-- {
		img, ok := m.images[m.order[i]]
		if !ok || img.UserID != userID {
			continue
		}
		if imageType != "" && img.Type != imageType {
			continue
		}
		out = append(out, *img)
	}
	return out, nil
}

func (m *mockImageRepo) DeleteImage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, id)
	return nil
}

func (m *mockImageRepo) ListStorageKeysByUserID(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, img := range m.images {
		if img.UserID == userID && img.StorageKey != nil {
			keys = append(keys, *img.StorageKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockImageRepo) byType(userID, imageType string) []model.Image {
	imgs, _ := m.ListImagesByUserID(context.Background(), userID, imageType)
	return imgs
}

type mockTransactionRepo struct {
	mu           sync.Mutex
	transactions []model.Transaction
	createErr    error
}

func (m *mockTransactionRepo) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.transactions = append(m.transactions, *t)
	return nil
}

type mockObjectStore struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	deleted   []string
	uploadErr error
	deleteErr error
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{uploads: make(map[string][]byte)}
}

func (m *mockObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.uploads[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, key)
	return nil
}

type mockGenerator struct {
	generateFn func(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error)
}

func (m *mockGenerator) Generate(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error) {
	return m.generateFn(ctx, personURL, outfitURL)
}
