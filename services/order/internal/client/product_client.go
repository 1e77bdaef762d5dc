package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/httpclient"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const ProductDependency = "product-service"

type ProductGetter interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type productClient struct {
	baseURL string
	http    *httpclient.Client
	tracer  trace.Tracer
}

func NewProductClient(baseURL string, http *httpclient.Client) ProductGetter {
	return &productClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
		tracer:  otel.Tracer("product_client"),
	}
}

func (c *productClient) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "ProductClient.GetProduct")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", id))

	var resp struct {
		Product domain.Product `json:"product"`
	}

	endpoint := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(id))
	if err := c.http.GetJSON(ctx, ProductDependency, endpoint, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &resp.Product, nil
}
