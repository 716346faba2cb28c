package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"toko/internal/apperrors"
	"toko/internal/config"
	"toko/internal/models"
	"toko/internal/repositories"
	"toko/internal/server"
	"toko/internal/services"
	"toko/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testBaseURL   = "http://localhost:3000"
	testUploadDir = "uploads"
	testMaxUpload = 64 << 10
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x00}, 64)...)
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x00}, 64)...)
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
)

// recordingPublisher captures published event types.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type testEnv struct {
	app    *fiber.App
	fs     afero.Fs
	events *recordingPublisher
	token  string
}

// setupApp builds the full app on in-memory SQLite and an in-memory
// filesystem, then registers and logs in a user.
func setupApp(t *testing.T) *testEnv {
	return setupAppWith(t, nil)
}

// setupAppWith is setupApp with products kept in the given repository
// instead of SQLite. Users stay in SQLite.
func setupAppWith(t *testing.T, products repositories.ProductRepository) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err, "failed to connect to in-memory database")
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.User{}))

	cfg := &config.Config{
		AppPort:        ":0",
		BaseURL:        testBaseURL,
		StoreDriver:    config.DriverSQLite,
		StoreTimeout:   5 * time.Second,
		JWTSecret:      "test_jwt_secret",
		JWTTTL:         time.Hour,
		UploadDir:      testUploadDir,
		MaxUploadSize:  testMaxUpload,
		MetricsEnabled: true,
	}

	fs := afero.NewMemMapFs()
	images, err := storage.NewDiskImageStore(fs, cfg.UploadDir, storage.WithMaxSize(cfg.MaxUploadSize))
	require.NoError(t, err)

	events := &recordingPublisher{}
	log := zap.NewNop()

	if products == nil {
		products = repositories.NewGORMProductRepository(db)
	}
	productService := services.NewProductService(products, images, events, log, cfg.StoreTimeout)
	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWTSecret, cfg.JWTTTL, log)

	app := server.New(server.Deps{
		Config:         cfg,
		Logger:         log,
		ProductService: productService,
		AuthService:    authService,
		Uploads:        fs,
	})

	env := &testEnv{app: app, fs: fs, events: events}
	env.token = env.registerAndLogin(t, "alice", "alice@example.com", "password123")
	return env
}

func (e *testEnv) registerAndLogin(t *testing.T, username, email, password string) string {
	t.Helper()

	status, _ := e.doJSON(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, body := e.doJSON(t, fiber.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, fiber.StatusOK, status)

	token, ok := body["token"].(string)
	require.True(t, ok, "login response carries a token")
	return token
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) doJSON(t *testing.T, method, target, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	status, raw := e.do(t, req)
	return status, decode(t, raw)
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func (e *testEnv) postProduct(t *testing.T, fields map[string]string, files ...formFile) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/products", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+e.token)

	status, raw := e.do(t, req)
	return status, decode(t, raw)
}

func (e *testEnv) createProduct(t *testing.T, name, price string) map[string]interface{} {
	t.Helper()
	status, body := e.postProduct(t,
		map[string]string{"name": name, "price": price},
		formFile{field: "productImage", filename: strings.ToLower(name) + ".jpg", contentType: "image/jpeg", data: jpegBytes},
	)
	require.Equal(t, fiber.StatusCreated, status, "body: %v", body)
	created, ok := body["createdProduct"].(map[string]interface{})
	require.True(t, ok)
	return created
}

func (e *testEnv) uploadedFiles(t *testing.T) []string {
	t.Helper()
	infos, err := afero.ReadDir(e.fs, testUploadDir)
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	if len(raw) == 0 {
		return nil
	}
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	return body
}

func errorKind(body map[string]interface{}) apperrors.Kind {
	detail, _ := body["error"].(map[string]interface{})
	kind, _ := detail["kind"].(string)
	return apperrors.Kind(kind)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestLampScenario(t *testing.T) {
	env := setupApp(t)

	created := env.createProduct(t, "Lamp", "19.99")
	assert.Equal(t, "Lamp", created["name"])
	assert.Equal(t, 19.99, created["price"])

	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, map[string]interface{}{
		"type": "POST",
		"url":  testBaseURL + "/products/" + id,
	}, created["requests"])

	status, body := env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	require.Equal(t, fiber.StatusOK, status)

	product, ok := body["product"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Lamp", product["name"])
	assert.Equal(t, 19.99, product["price"])
	assert.Equal(t, id, product["id"])
	assert.True(t, strings.HasPrefix(product["productImage"].(string), testUploadDir+"/"))
	assert.True(t, strings.HasSuffix(product["productImage"].(string), "lamp.jpg"))
	assert.Equal(t, map[string]interface{}{
		"type":        "GET",
		"description": "Get all products",
		"url":         testBaseURL + "/products",
	}, body["request"])

	assert.Equal(t, []string{services.EventProductCreated}, env.events.Types())
}

func TestListProducts(t *testing.T) {
	env := setupApp(t)

	// Listing is public.
	status, body := env.doJSON(t, fiber.MethodGet, "/products", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"message": "No entries found"}, body)

	env.createProduct(t, "Lamp", "19.99")
	env.createProduct(t, "Desk", "120")

	status, body = env.doJSON(t, fiber.MethodGet, "/products", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, body, "message")
	assert.EqualValues(t, 2, body["count"])

	products, ok := body["products"].([]interface{})
	require.True(t, ok)
	require.Len(t, products, 2)
	for _, raw := range products {
		p := raw.(map[string]interface{})
		assert.Equal(t, []string{"id", "name", "price", "productImage", "requests"}, keys(p))
		assert.Equal(t, map[string]interface{}{
			"type": "GET",
			"url":  testBaseURL + "/products/" + p["id"].(string),
		}, p["requests"])
	}
}

func TestCreateProduct_AcceptsPNG(t *testing.T) {
	env := setupApp(t)

	status, body := env.postProduct(t,
		map[string]string{"name": "Poster", "price": "5"},
		formFile{field: "productImage", filename: "poster.png", contentType: "image/png", data: pngBytes},
	)
	require.Equal(t, fiber.StatusCreated, status, "body: %v", body)
	assert.Equal(t, "Created product successfully", body["message"])
	assert.Len(t, env.uploadedFiles(t), 1)
}

func TestCreateProduct_Rejections(t *testing.T) {
	jpeg := formFile{field: "productImage", filename: "lamp.jpg", contentType: "image/jpeg", data: jpegBytes}

	tests := []struct {
		name   string
		fields map[string]string
		files  []formFile
		status int
		kind   apperrors.Kind
	}{
		{
			name:   "pdf",
			fields: map[string]string{"name": "Manual", "price": "1"},
			files:  []formFile{{field: "productImage", filename: "manual.pdf", contentType: "application/pdf", data: pdfBytes}},
			status: fiber.StatusUnsupportedMediaType,
			kind:   apperrors.KindUnsupportedMediaType,
		},
		{
			name:   "pdf disguised as png",
			fields: map[string]string{"name": "Manual", "price": "1"},
			files:  []formFile{{field: "productImage", filename: "manual.png", contentType: "image/png", data: pdfBytes}},
			status: fiber.StatusUnsupportedMediaType,
			kind:   apperrors.KindUnsupportedMediaType,
		},
		{
			name:   "too large",
			fields: map[string]string{"name": "Lamp", "price": "1"},
			files: []formFile{{
				field: "productImage", filename: "big.jpg", contentType: "image/jpeg",
				data: append(append([]byte(nil), jpegBytes...), bytes.Repeat([]byte{0x00}, testMaxUpload)...),
			}},
			status: fiber.StatusRequestEntityTooLarge,
			kind:   apperrors.KindPayloadTooLarge,
		},
		{
			name:   "missing file",
			fields: map[string]string{"name": "Lamp", "price": "1"},
			status: fiber.StatusBadRequest,
			kind:   apperrors.KindInvalidInput,
		},
		{
			name:   "missing name",
			fields: map[string]string{"price": "1"},
			files:  []formFile{jpeg},
			status: fiber.StatusBadRequest,
			kind:   apperrors.KindInvalidInput,
		},
		{
			name:   "missing price",
			fields: map[string]string{"name": "Lamp"},
			files:  []formFile{jpeg},
			status: fiber.StatusBadRequest,
			kind:   apperrors.KindInvalidInput,
		},
		{
			name:   "price not a number",
			fields: map[string]string{"name": "Lamp", "price": "cheap"},
			files:  []formFile{jpeg},
			status: fiber.StatusBadRequest,
			kind:   apperrors.KindInvalidInput,
		},
		{
			name:   "two images",
			fields: map[string]string{"name": "Lamp", "price": "1"},
			files:  []formFile{jpeg, jpeg},
			status: fiber.StatusBadRequest,
			kind:   apperrors.KindInvalidInput,
		},
		{
			name:   "unexpected file field",
			fields: map[string]string{"name": "Lamp", "price": "1"},
			files:  []formFile{{field: "thumbnail", filename: "lamp.jpg", contentType: "image/jpeg", data: jpegBytes}},
			status: fiber.StatusBadRequest,
			kind:   apperrors.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupApp(t)

			status, body := env.postProduct(t, tt.fields, tt.files...)
			assert.Equal(t, tt.status, status, "body: %v", body)
			assert.Equal(t, tt.kind, errorKind(body))

			// Nothing is persisted and no file is left behind.
			_, list := env.doJSON(t, fiber.MethodGet, "/products", "", nil)
			assert.Equal(t, "No entries found", list["message"])
			assert.Empty(t, env.uploadedFiles(t))
			assert.Empty(t, env.events.Types())
		})
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	env := setupApp(t)

	status, body := env.doJSON(t, fiber.MethodGet, "/products/"+uuid.New().String(), env.token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, map[string]interface{}{"message": services.NotFoundMessage}, body)
}

func TestProductRoutes_MalformedID(t *testing.T) {
	stores := map[string]repositories.ProductRepository{
		"sqlite": nil,
		// Ids are checked before the collection is used.
		"mongo": &repositories.MongoProductRepository{},
	}

	for name, products := range stores {
		t.Run(name, func(t *testing.T) {
			env := setupAppWith(t, products)

			requests := []struct {
				method  string
				payload interface{}
			}{
				{fiber.MethodGet, nil},
				{fiber.MethodPatch, []map[string]interface{}{{"propName": "price", "value": 42}}},
				{fiber.MethodDelete, nil},
			}
			for _, r := range requests {
				status, body := env.doJSON(t, r.method, "/products/not-an-id", env.token, r.payload)
				assert.Equal(t, fiber.StatusInternalServerError, status, r.method)
				assert.Equal(t, apperrors.KindInternal, errorKind(body), r.method)
			}
			assert.Empty(t, env.events.Types())
		})
	}
}

// failingProductRepository fails every call with a driver-level error.
type failingProductRepository struct{}

var errStoreDown = errors.New("dial tcp 10.0.0.5:27017: connect: connection refused")

func (failingProductRepository) List(context.Context) ([]models.Product, error) {
	return nil, errStoreDown
}

func (failingProductRepository) GetByID(context.Context, string) (*models.Product, error) {
	return nil, errStoreDown
}

func (failingProductRepository) Create(context.Context, *models.Product) error {
	return errStoreDown
}

func (failingProductRepository) Update(context.Context, string, map[string]interface{}) (int64, error) {
	return 0, errStoreDown
}

func (failingProductRepository) Delete(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func TestProductRoutes_StoreFailure(t *testing.T) {
	env := setupAppWith(t, failingProductRepository{})
	id := uuid.New().String()

	assertInternal := func(t *testing.T, status int, body map[string]interface{}) {
		t.Helper()
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, apperrors.KindInternal, errorKind(body))
		detail := body["error"].(map[string]interface{})
		assert.Equal(t, "an internal error occurred", detail["message"])
		assert.NotContains(t, fmt.Sprint(body), "10.0.0.5")
	}

	status, body := env.doJSON(t, fiber.MethodGet, "/products", "", nil)
	assertInternal(t, status, body)

	status, body = env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	assertInternal(t, status, body)

	status, body = env.doJSON(t, fiber.MethodPatch, "/products/"+id, env.token, []map[string]interface{}{
		{"propName": "name", "value": "Desk"},
	})
	assertInternal(t, status, body)

	status, body = env.doJSON(t, fiber.MethodDelete, "/products/"+id, env.token, nil)
	assertInternal(t, status, body)

	status, body = env.postProduct(t,
		map[string]string{"name": "Lamp", "price": "19.99"},
		formFile{field: "productImage", filename: "lamp.jpg", contentType: "image/jpeg", data: jpegBytes},
	)
	assertInternal(t, status, body)
	assert.Empty(t, env.uploadedFiles(t), "the stored image is removed when the insert fails")
	assert.Empty(t, env.events.Types())
}

func TestUpdateProduct(t *testing.T) {
	env := setupApp(t)

	created := env.createProduct(t, "Lamp", "19.99")
	id := created["id"].(string)

	_, before := env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	image := before["product"].(map[string]interface{})["productImage"]

	status, body := env.doJSON(t, fiber.MethodPatch, "/products/"+id, env.token, []map[string]interface{}{
		{"propName": "price", "value": 42},
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Product updated", body["message"])
	assert.Equal(t, map[string]interface{}{
		"type": "PATCH",
		"url":  testBaseURL + "/products/" + id,
	}, body["request"])

	_, after := env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	product := after["product"].(map[string]interface{})
	assert.Equal(t, float64(42), product["price"])
	assert.Equal(t, "Lamp", product["name"])
	assert.Equal(t, image, product["productImage"])

	// Later operations on the same property win.
	status, _ = env.doJSON(t, fiber.MethodPatch, "/products/"+id, env.token, []map[string]interface{}{
		{"propName": "name", "value": "Desk Lamp"},
		{"propName": "name", "value": "Floor Lamp"},
	})
	require.Equal(t, fiber.StatusOK, status)
	_, after = env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	assert.Equal(t, "Floor Lamp", after["product"].(map[string]interface{})["name"])

	assert.Equal(t, []string{
		services.EventProductCreated,
		services.EventProductUpdated,
		services.EventProductUpdated,
	}, env.events.Types())
}

func TestUpdateProduct_MissingIDSucceeds(t *testing.T) {
	env := setupApp(t)

	status, body := env.doJSON(t, fiber.MethodPatch, "/products/"+uuid.New().String(), env.token, []map[string]interface{}{
		{"propName": "price", "value": 42},
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Product updated", body["message"])
	assert.Empty(t, env.events.Types())
}

func TestUpdateProduct_Rejections(t *testing.T) {
	env := setupApp(t)
	id := env.createProduct(t, "Lamp", "19.99")["id"].(string)

	tests := []struct {
		name    string
		payload interface{}
	}{
		{"empty array", []map[string]interface{}{}},
		{"not an array", map[string]interface{}{"propName": "price", "value": 1}},
		{"immutable image", []map[string]interface{}{{"propName": "productImage", "value": "x.png"}}},
		{"immutable id", []map[string]interface{}{{"propName": "id", "value": "x"}}},
		{"unknown field", []map[string]interface{}{{"propName": "color", "value": "red"}}},
		{"price not a number", []map[string]interface{}{{"propName": "price", "value": "free"}}},
		{"empty name", []map[string]interface{}{{"propName": "name", "value": " "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.doJSON(t, fiber.MethodPatch, "/products/"+id, env.token, tt.payload)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, apperrors.KindInvalidInput, errorKind(body))
		})
	}

	_, after := env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	product := after["product"].(map[string]interface{})
	assert.Equal(t, "Lamp", product["name"])
	assert.Equal(t, 19.99, product["price"])
}

func TestDeleteProduct_Twice(t *testing.T) {
	env := setupApp(t)
	id := env.createProduct(t, "Lamp", "19.99")["id"].(string)

	for i := 0; i < 2; i++ {
		status, body := env.doJSON(t, fiber.MethodDelete, "/products/"+id, env.token, nil)
		require.Equal(t, fiber.StatusOK, status, "delete #%d", i+1)
		assert.Equal(t, "Product deleted", body["message"])
		assert.Equal(t, map[string]interface{}{
			"type": "DELETE",
			"url":  testBaseURL + "/products/" + id,
			"body": map[string]interface{}{"name": "String", "price": "Number"},
		}, body["request"])
	}

	status, _ := env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	// The second delete matched nothing and publishes nothing.
	assert.Equal(t, []string{services.EventProductCreated, services.EventProductDeleted}, env.events.Types())
	// Images outlive their product.
	assert.Len(t, env.uploadedFiles(t), 1)
}

func TestProductRoutesRequireToken(t *testing.T) {
	env := setupApp(t)
	id := uuid.New().String()

	requests := []struct {
		method string
		target string
	}{
		{fiber.MethodPost, "/products"},
		{fiber.MethodGet, "/products/" + id},
		{fiber.MethodPatch, "/products/" + id},
		{fiber.MethodDelete, "/products/" + id},
	}

	for _, r := range requests {
		for _, token := range []string{"", "garbage"} {
			status, body := env.doJSON(t, r.method, r.target, token, nil)
			assert.Equal(t, fiber.StatusUnauthorized, status, "%s %s", r.method, r.target)
			assert.Equal(t, apperrors.KindUnauthorized, errorKind(body))
		}
	}
}

func TestAuthFlow(t *testing.T) {
	env := setupApp(t)

	t.Run("duplicate username", func(t *testing.T) {
		status, body := env.doJSON(t, fiber.MethodPost, "/auth/register", "", map[string]string{
			"username": "alice", "email": "other@example.com", "password": "password123",
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, apperrors.KindConflict, errorKind(body))
	})

	t.Run("invalid registration", func(t *testing.T) {
		status, body := env.doJSON(t, fiber.MethodPost, "/auth/register", "", map[string]string{
			"username": "bo", "email": "not-an-email", "password": "123",
		})
		assert.Equal(t, fiber.StatusBadRequest, status)
		detail := body["error"].(map[string]interface{})
		assert.Contains(t, detail["fields"], "Email")
		assert.Contains(t, detail["fields"], "Password")
	})

	t.Run("registration hides password", func(t *testing.T) {
		status, body := env.doJSON(t, fiber.MethodPost, "/auth/register", "", map[string]string{
			"username": "carol", "email": "carol@example.com", "password": "password123",
		})
		require.Equal(t, fiber.StatusCreated, status)
		assert.NotContains(t, body["user"], "password")
	})

	t.Run("wrong password", func(t *testing.T) {
		status, body := env.doJSON(t, fiber.MethodPost, "/auth/login", "", map[string]string{
			"username": "alice", "password": "wrong-password",
		})
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, apperrors.KindUnauthorized, errorKind(body))
	})
}

func TestUploadsAreServed(t *testing.T) {
	env := setupApp(t)
	id := env.createProduct(t, "Lamp", "19.99")["id"].(string)

	_, body := env.doJSON(t, fiber.MethodGet, "/products/"+id, env.token, nil)
	image := body["product"].(map[string]interface{})["productImage"].(string)

	status, raw := env.do(t, httptest.NewRequest(fiber.MethodGet, "/"+image, nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, jpegBytes, raw)

	status, raw = env.do(t, httptest.NewRequest(fiber.MethodGet, "/uploads/missing.png", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.KindNotFound, errorKind(decode(t, raw)))
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupApp(t)

	status, body := env.doJSON(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	env.createProduct(t, "Lamp", "19.99")

	status, raw := env.do(t, httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "product_operations_total")
	assert.Contains(t, string(raw), `route="/products"`)
}

func TestUnknownRoute(t *testing.T) {
	env := setupApp(t)

	status, body := env.doJSON(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.KindNotFound, errorKind(body))
}
