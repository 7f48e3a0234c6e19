package products

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := NewConn(db)
	require.NoError(t, err)
	return conn, mock
}

func productColumns() []string {
	return []string{"id", "name", "price", "wholesale_price", "retail_price", "stock", "image", "created_at", "updated_at"}
}

func TestInsertProduct(t *testing.T) {
	conn, mock := newTestConn(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO products").
		WithArgs(sqlmock.AnyArg(), "Teclado", int64(4500), nil, nil, 10, "uploads/1_teclado.png").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	product, err := conn.InsertProduct(context.Background(), NewProduct{
		Name:  "Teclado",
		Price: 4500,
		Stock: 10,
		Image: "uploads/1_teclado.png",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, int64(4500), product.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByIDNotFound(t *testing.T) {
	conn, mock := newTestConn(t)

	mock.ExpectQuery("SELECT (.+) FROM products").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(productColumns()))

	_, err := conn.GetProductByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProductByID(t *testing.T) {
	conn, mock := newTestConn(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM products").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows(productColumns()).
			AddRow("prod-1", "Teclado", int64(4500), nil, nil, 10, "", now, now))

	product, err := conn.GetProductByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Teclado", product.Name)
	assert.Nil(t, product.WholesalePrice)
}

func TestDeleteProductNotFound(t *testing.T) {
	conn, mock := newTestConn(t)

	mock.ExpectExec("DELETE FROM products").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := conn.DeleteProductFromDB(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProductsSortFallsBackToWhitelist(t *testing.T) {
	conn, mock := newTestConn(t)

	now := time.Now()
	// Anything outside the whitelist must sort by name, never reach the SQL
	mock.ExpectQuery("ORDER BY name asc").
		WithArgs("", 10, 0).
		WillReturnRows(sqlmock.NewRows(productColumns()).
			AddRow("prod-1", "Monitor", int64(12000), nil, nil, 3, "", now, now))

	list, err := conn.ListProductsFromDB(context.Background(), "", 10, 0, "price; DROP TABLE products", "asc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Monitor", list[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsFiltersByName(t *testing.T) {
	conn, mock := newTestConn(t)

	now := time.Now()
	wholesale := int64(10000)
	mock.ExpectQuery("ORDER BY price desc").
		WithArgs("moni", 5, 0).
		WillReturnRows(sqlmock.NewRows(productColumns()).
			AddRow("prod-1", "Monitor", int64(12000), wholesale, nil, 3, "", now, now))

	list, err := conn.ListProductsFromDB(context.Background(), "moni", 5, 0, "price", "desc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].WholesalePrice)
	assert.Equal(t, int64(10000), *list[0].WholesalePrice)
}

func TestUpdateProductNotFound(t *testing.T) {
	conn, mock := newTestConn(t)

	mock.ExpectQuery("UPDATE products").
		WithArgs("Teclado", int64(4500), nil, nil, 10, "", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

	_, err := conn.UpdateProductInDB(context.Background(), "ghost", Product{
		Name:  "Teclado",
		Price: 4500,
		Stock: 10,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
