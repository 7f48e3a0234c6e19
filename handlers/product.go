package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"tienda-service/internal/products"
	"tienda-service/pkg/ctxmanage"
	"tienda-service/pkg/logkey"
)

// Product create/update arrive as multipart forms because they may carry an
// image file. Prices are integer cents.

const maxUploadSize = 5 << 20 // 5 MB

func (h *Handler) CreateProduct(c *gin.Context) {
	// Get the traceId from the request for tracking logs
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	newProduct, fileHeader, ok := h.bindProductForm(c, traceId)
	if !ok {
		return
	}

	if fileHeader != nil {
		path, ok := h.saveImage(c, fileHeader, traceId)
		if !ok {
			return
		}
		newProduct.Image = path
	}

	insertedProduct, err := h.p.InsertProduct(c.Request.Context(), newProduct)
	if err != nil {
		slog.Error("error in inserting the product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		h.img.Remove(newProduct.Image)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Product Creation Failed"})
		return
	}

	c.JSON(http.StatusOK, insertedProduct)
}

func (h *Handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID := c.Param("id")

	product, err := h.p.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			slog.Error("product not found", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		} else {
			slog.Error("error in retrieving product", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		}
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID := c.Param("id")
	if productID == "" {
		slog.Error("missing product ID in request", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Product ID is required"})
		return
	}

	// Fetch the current product so we know which image to retain or release
	currentProduct, err := h.p.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			slog.Error("product not found", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		} else {
			slog.Error("error in retrieving product", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		}
		return
	}

	form, fileHeader, ok := h.bindProductForm(c, traceId)
	if !ok {
		return
	}

	// No new image keeps the existing reference
	form.Image = currentProduct.Image
	if fileHeader != nil {
		path, ok := h.saveImage(c, fileHeader, traceId)
		if !ok {
			return
		}
		form.Image = path
	}

	updatedProduct := products.Product{
		Name:           form.Name,
		Price:          form.Price,
		WholesalePrice: form.WholesalePrice,
		RetailPrice:    form.RetailPrice,
		Stock:          form.Stock,
		Image:          form.Image,
	}

	product, err := h.p.UpdateProductInDB(c.Request.Context(), productID, updatedProduct)
	if err != nil {
		slog.Error("error in updating the product", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
		if fileHeader != nil {
			h.img.Remove(form.Image)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product update failed"})
		return
	}

	// Release the replaced image only after the row landed
	if fileHeader != nil && currentProduct.Image != "" {
		if err := h.img.Remove(currentProduct.Image); err != nil {
			slog.Error("error removing replaced image", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}

	slog.Info("product updated successfully", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID))
	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": product})
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID := c.Param("id")

	// Look the product up first to locate the image resource to release
	currentProduct, err := h.p.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			slog.Error("product not found", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		} else {
			slog.Error("error in retrieving product", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		}
		return
	}

	if err := h.p.DeleteProductFromDB(c.Request.Context(), productID); err != nil {
		slog.Error("error in deleting the product", slog.String(logkey.TraceID, traceId), slog.String("ProductID", productID), slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Product deletion failed"})
		return
	}

	if err := h.img.Remove(currentProduct.Image); err != nil {
		slog.Error("error removing product image", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product successfully deleted"})
}

func (h *Handler) ListProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	// Optional query parameters for filtering, pagination, and sorting
	nameFilter := c.Query("name")           // Filter by name
	limit := c.DefaultQuery("limit", "10")  // Default limit is 10
	offset := c.DefaultQuery("offset", "0") // Default offset is 0
	sort := c.DefaultQuery("sort", "name")  // Default sort is by name
	order := c.DefaultQuery("order", "asc") // Default order is ascending

	limitInt, err := strconv.Atoi(limit)
	if err != nil || limitInt <= 0 {
		slog.Error("invalid limit parameter", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}
	offsetInt, err := strconv.Atoi(offset)
	if err != nil || offsetInt < 0 {
		slog.Error("invalid offset parameter", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
		return
	}

	list, err := h.p.ListProductsFromDB(c.Request.Context(), nameFilter, limitInt, offsetInt, sort, order)
	if err != nil {
		slog.Error("error in fetching products", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": list})
}

// bindProductForm decodes and validates the multipart product form shared by
// create and update. Reports the validation error itself and returns ok=false
// when the payload is unusable.
func (h *Handler) bindProductForm(c *gin.Context, traceId string) (products.NewProduct, *multipart.FileHeader, bool) {
	var newProduct products.NewProduct

	newProduct.Name = strings.TrimSpace(c.PostForm("name"))

	price, err := parsePriceField(c.PostForm("price"))
	if err != nil {
		slog.Error("invalid price field", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Price must be a non-negative integer amount in cents"})
		return products.NewProduct{}, nil, false
	}
	newProduct.Price = price

	stock, err := strconv.Atoi(c.DefaultPostForm("stock", "0"))
	if err != nil || stock < 0 {
		slog.Error("invalid stock field", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Stock must be a non-negative integer"})
		return products.NewProduct{}, nil, false
	}
	newProduct.Stock = stock

	for field, dst := range map[string]**int64{
		"wholesale_price": &newProduct.WholesalePrice,
		"retail_price":    &newProduct.RetailPrice,
	} {
		raw := c.PostForm(field)
		if raw == "" {
			continue
		}
		v, err := parsePriceField(raw)
		if err != nil {
			slog.Error("invalid price tier field", slog.String(logkey.TraceID, traceId), slog.String("Field", field))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": field + " must be a non-negative integer amount in cents"})
			return products.NewProduct{}, nil, false
		}
		*dst = &v
	}

	if err := h.validate.Struct(newProduct); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, vErr := range vErrs {
				switch vErr.Tag() {
				case "required":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
					return products.NewProduct{}, nil, false
				case "min":
					slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is less than " + vErr.Param()})
					return products.NewProduct{}, nil, false
				}
			}
		}
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return products.NewProduct{}, nil, false
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			slog.Error("error reading image file", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid image upload"})
			return products.NewProduct{}, nil, false
		}
		fileHeader = nil
	}
	if fileHeader != nil && fileHeader.Size > maxUploadSize {
		slog.Error("image too large", slog.String(logkey.TraceID, traceId), slog.Int64("Size Received", fileHeader.Size))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Image too large"})
		return products.NewProduct{}, nil, false
	}

	return newProduct, fileHeader, true
}

func (h *Handler) saveImage(c *gin.Context, fileHeader *multipart.FileHeader, traceId string) (string, bool) {
	src, err := fileHeader.Open()
	if err != nil {
		slog.Error("error opening uploaded image", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid image upload"})
		return "", false
	}
	defer src.Close()

	path, err := h.img.Save(fileHeader.Filename, src)
	if err != nil {
		slog.Error("error saving image", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return "", false
	}
	return path, true
}

func parsePriceField(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %w", err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount")
	}
	return v, nil
}
