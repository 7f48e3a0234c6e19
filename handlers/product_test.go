package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda-service/internal/cart"
	"tienda-service/internal/images"
	"tienda-service/internal/products"
)

// stubCatalog lets each test script the catalog behaviour the handler sees.
type stubCatalog struct {
	insertFn func(ctx context.Context, newProduct products.NewProduct) (products.Product, error)
	getFn    func(ctx context.Context, productID string) (products.Product, error)
	updateFn func(ctx context.Context, productID string, product products.Product) (products.Product, error)
	deleteFn func(ctx context.Context, productID string) error
	listFn   func(ctx context.Context, nameFilter string, limit, offset int, sort, order string) ([]products.Product, error)
}

func (s *stubCatalog) InsertProduct(ctx context.Context, newProduct products.NewProduct) (products.Product, error) {
	return s.insertFn(ctx, newProduct)
}

func (s *stubCatalog) GetProductByID(ctx context.Context, productID string) (products.Product, error) {
	return s.getFn(ctx, productID)
}

func (s *stubCatalog) UpdateProductInDB(ctx context.Context, productID string, product products.Product) (products.Product, error) {
	return s.updateFn(ctx, productID, product)
}

func (s *stubCatalog) DeleteProductFromDB(ctx context.Context, productID string) error {
	return s.deleteFn(ctx, productID)
}

func (s *stubCatalog) ListProductsFromDB(ctx context.Context, nameFilter string, limit, offset int, sort, order string) ([]products.Product, error) {
	return s.listFn(ctx, nameFilter, limit, offset, sort, order)
}

func newTestHandler(t *testing.T, catalog *stubCatalog) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	img, err := images.NewStore(t.TempDir())
	require.NoError(t, err)

	return NewHandler(nil, products.Conf{Service: catalog}, cart.Conf{}, nil, nil, img, nil)
}

func testContext(t *testing.T, req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func productForm(t *testing.T, fields map[string]string, imageName string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestGetProductNotFound(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{
		getFn: func(ctx context.Context, productID string) (products.Product, error) {
			return products.Product{}, products.ErrNotFound
		},
	})

	c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/products/view/ghost", nil))
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	h.GetProduct(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProduct(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{
		getFn: func(ctx context.Context, productID string) (products.Product, error) {
			return products.Product{ID: productID, Name: "Teclado", Price: 4500, Stock: 10}, nil
		},
	})

	c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/products/view/prod-1", nil))
	c.Params = gin.Params{{Key: "id", Value: "prod-1"}}
	h.GetProduct(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got products.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Teclado", got.Name)
}

func TestCreateProductMissingName(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	body, contentType := productForm(t, map[string]string{"price": "4500", "stock": "10"}, "")
	req := httptest.NewRequest(http.MethodPost, "/products/create", body)
	req.Header.Set("Content-Type", contentType)

	c, w := testContext(t, req)
	h.CreateProduct(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Name value missing")
}

func TestCreateProductRejectsNonNumericPrice(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	body, contentType := productForm(t, map[string]string{"name": "Teclado", "price": "mucho", "stock": "10"}, "")
	req := httptest.NewRequest(http.MethodPost, "/products/create", body)
	req.Header.Set("Content-Type", contentType)

	c, w := testContext(t, req)
	h.CreateProduct(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProductRejectsNegativeStock(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	body, contentType := productForm(t, map[string]string{"name": "Teclado", "price": "4500", "stock": "-1"}, "")
	req := httptest.NewRequest(http.MethodPost, "/products/create", body)
	req.Header.Set("Content-Type", contentType)

	c, w := testContext(t, req)
	h.CreateProduct(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProductStoresImage(t *testing.T) {
	var inserted products.NewProduct
	h := newTestHandler(t, &stubCatalog{
		insertFn: func(ctx context.Context, newProduct products.NewProduct) (products.Product, error) {
			inserted = newProduct
			return products.Product{ID: "prod-1", Name: newProduct.Name, Price: newProduct.Price, Image: newProduct.Image}, nil
		},
	})

	body, contentType := productForm(t, map[string]string{"name": "Teclado", "price": "4500", "stock": "10"}, "teclado.png")
	req := httptest.NewRequest(http.MethodPost, "/products/create", body)
	req.Header.Set("Content-Type", contentType)

	c, w := testContext(t, req)
	h.CreateProduct(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, inserted.Image)
	data, err := os.ReadFile(inserted.Image)
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))
	assert.True(t, strings.Contains(inserted.Image, "teclado.png"))
}

func TestUpdateProductRetainsImageWhenNoneUploaded(t *testing.T) {
	var updated products.Product
	h := newTestHandler(t, &stubCatalog{
		getFn: func(ctx context.Context, productID string) (products.Product, error) {
			return products.Product{ID: productID, Name: "Teclado", Price: 4500, Stock: 10, Image: "uploads/1_old.png"}, nil
		},
		updateFn: func(ctx context.Context, productID string, product products.Product) (products.Product, error) {
			updated = product
			return product, nil
		},
	})

	body, contentType := productForm(t, map[string]string{"name": "Teclado Pro", "price": "5000", "stock": "8"}, "")
	req := httptest.NewRequest(http.MethodPut, "/products/update/prod-1", body)
	req.Header.Set("Content-Type", contentType)

	c, w := testContext(t, req)
	c.Params = gin.Params{{Key: "id", Value: "prod-1"}}
	h.UpdateProduct(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "uploads/1_old.png", updated.Image)
	assert.Equal(t, "Teclado Pro", updated.Name)
}

func TestDeleteProductRemovesImageFile(t *testing.T) {
	img, err := images.NewStore(t.TempDir())
	require.NoError(t, err)
	path, err := img.Save("teclado.png", strings.NewReader("bytes"))
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, products.Conf{Service: &stubCatalog{
		getFn: func(ctx context.Context, productID string) (products.Product, error) {
			return products.Product{ID: productID, Image: path}, nil
		},
		deleteFn: func(ctx context.Context, productID string) error {
			return nil
		},
	}}, cart.Conf{}, nil, nil, img, nil)

	c, w := testContext(t, httptest.NewRequest(http.MethodDelete, "/products/delete/prod-1", nil))
	c.Params = gin.Params{{Key: "id", Value: "prod-1"}}
	h.DeleteProduct(c)

	require.Equal(t, http.StatusOK, w.Code)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteProductWithoutImage(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{
		getFn: func(ctx context.Context, productID string) (products.Product, error) {
			return products.Product{ID: productID}, nil
		},
		deleteFn: func(ctx context.Context, productID string) error {
			return nil
		},
	})

	c, w := testContext(t, httptest.NewRequest(http.MethodDelete, "/products/delete/prod-1", nil))
	c.Params = gin.Params{{Key: "id", Value: "prod-1"}}
	h.DeleteProduct(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListProductsRejectsBadLimit(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/products/list?limit=zero", nil))
	h.ListProducts(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListProducts(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{
		listFn: func(ctx context.Context, nameFilter string, limit, offset int, sort, order string) ([]products.Product, error) {
			assert.Equal(t, "tec", nameFilter)
			assert.Equal(t, 5, limit)
			return []products.Product{{ID: "prod-1", Name: "Teclado"}}, nil
		},
	})

	c, w := testContext(t, httptest.NewRequest(http.MethodGet, "/products/list?name=tec&limit=5", nil))
	h.ListProducts(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Teclado")
}
