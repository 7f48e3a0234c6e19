package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"tienda-service/internal/auth"
	"tienda-service/internal/cart"
	"tienda-service/internal/images"
	"tienda-service/internal/orders"
	"tienda-service/internal/products"
	"tienda-service/internal/stores/kafka"
	"tienda-service/internal/users"
	"tienda-service/middleware"
	"tienda-service/pkg/ctxmanage"
)

type Handler struct {
	u        *users.Conf
	p        products.Conf
	c        cart.Conf
	o        *orders.Conf
	k        *kafka.Conf
	img      *images.Store
	a        *auth.Keys
	validate *validator.Validate
}

func NewHandler(u *users.Conf, p products.Conf, c cart.Conf, o *orders.Conf,
	k *kafka.Conf, img *images.Store, a *auth.Keys) *Handler {
	return &Handler{
		u:        u,
		p:        p,
		c:        c,
		o:        o,
		k:        k,
		img:      img,
		a:        a,
		validate: validator.New(),
	}
}

func API(a *auth.Keys, u *users.Conf, p products.Conf, cConf cart.Conf,
	o *orders.Conf, k *kafka.Conf, img *images.Store) *gin.Engine {

	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m := middleware.NewMid(a)
	h := NewHandler(u, p, cConf, o, k, img, a)
	//apply middleware to all the endpoints using r.Use
	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)
	r.Static("/uploads", img.Dir())

	usersGroup := r.Group("/users")
	{
		usersGroup.POST("/signup", h.Signup)
		usersGroup.POST("/login", h.UserLogin)

		usersGroup.Use(m.Authentication())
		usersGroup.POST("/logout", h.Logout)
	}

	productsGroup := r.Group("/products")
	{
		productsGroup.Use(m.Authentication())
		productsGroup.GET("/list", h.ListProducts)   // GET /products/list - Lists all products with optional filtering and pagination.
		productsGroup.GET("/view/:id", h.GetProduct) // GET /products/view/:id - Retrieves a specific product's details using its unique ID.

		productsGroup.POST("/create", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		productsGroup.PUT("/update/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))    // PUT /products/update/:id - Updates an existing product's information by ID.
		productsGroup.DELETE("/delete/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin)) // DELETE /products/delete/:id - Deletes a product identified by its unique ID.
	}

	cartGroup := r.Group("/cart")
	{
		cartGroup.Use(m.Authentication())
		cartGroup.POST("/add-item", m.Authorize(h.AddToCart, auth.RoleUser))
		cartGroup.DELETE("/remove-item/:productID", m.Authorize(h.RemoveFromCart, auth.RoleUser))
		cartGroup.GET("/items", m.Authorize(h.GetActiveCartItems, auth.RoleUser))
	}

	ordersGroup := r.Group("/orders")
	{
		ordersGroup.Use(m.Authentication())
		ordersGroup.POST("/checkout", h.Checkout)
		ordersGroup.POST("/buy/:productID", h.BuyOne)
		ordersGroup.GET("/list", h.ListOrders)
		ordersGroup.GET("/all", m.Authorize(h.ListAllOrders, auth.RoleAdmin))
	}

	return r
}

func healthCheck(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	fmt.Println("healthCheck handler ", traceId)
	//JSON serializes the given struct as JSON into the response body. It also sets the Content-Type as "application/json".
	c.JSON(http.StatusOK, gin.H{"status": "ok"})

}
