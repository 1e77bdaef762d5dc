package tests

import (
	"testing"

	outboxRepository "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/repository"
	"github.com/dax-side/ecommerce-microservices-api/pkg/testsuite"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/repository"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	ProductService service.ProductService
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../migrations")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTable("products")
	s.BaseSuite.TruncateTable("outbox")
	s.BaseSuite.TruncateTable("processed_events")
	s.BaseSuite.FlushCache()

	logger := zap.NewNop()
	productRepo := repository.NewProductRepository(s.DbPool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)

	s.ProductService = service.NewCachedProductService(
		service.NewProductService(productRepo, outboxRepo, s.DbPool, logger),
		s.Cache,
	)
}

func (s *IntegrationTestSuite) createProduct(name, price string, stock int64) *domain.Product {
	p, err := s.ProductService.Create(s.Ctx, &domain.CreateProductInput{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "peripherals",
	})
	s.Require().NoError(err)
	return p
}

func (s *IntegrationTestSuite) stock(id string) int64 {
	var stock int64
	err := s.DbPool.QueryRow(s.Ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	s.Require().NoError(err)
	return stock
}

func (s *IntegrationTestSuite) countRows(table string) int {
	var n int
	err := s.DbPool.QueryRow(s.Ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	s.Require().NoError(err)
	return n
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration suite needs docker")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
