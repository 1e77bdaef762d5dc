package tests

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	s.seedProduct(domain.Product{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 5})
	s.seedProduct(domain.Product{ID: "p2", Name: "Cable", Price: decimal.RequireFromString("3.35"), Stock: 50})

	order, err := s.OrderService.Create(s.Ctx, "u1", []domain.LineRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
	})
	s.Require().NoError(err)
	s.Require().Equal(domain.OrderStatusPending, order.Status)

	var total decimal.Decimal
	err = s.DbPool.QueryRow(s.Ctx, `SELECT total_amount FROM orders WHERE id = $1`, order.ID).Scan(&total)
	s.Require().NoError(err)
	s.Require().True(decimal.RequireFromString("30.05").Equal(total), total.String())

	stored, err := s.OrderService.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 2)
	s.Require().Equal("p1", stored.Items[0].ProductID)
	s.Require().Equal("Cable", stored.Items[1].ProductName)
	s.Require().True(decimal.RequireFromString("3.35").Equal(stored.Items[1].Price))

	published, err := s.OutboxProcessor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, published)

	msgs := s.Producer.Messages()
	s.Require().Len(msgs, 1)
	s.Require().Equal("order_events", msgs[0].Topic)
	s.Require().Equal(order.ID, msgs[0].Key)
	s.Require().Equal("OrderCreated", msgs[0].Value["event"])
	s.Require().NotEmpty(msgs[0].Value["event_id"])
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientAvailability() {
	s.seedProduct(domain.Product{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 5})

	_, err := s.OrderService.Create(s.Ctx, "u1", []domain.LineRequest{{ProductID: "p1", Quantity: 10}})
	s.Require().Error(err)
	s.Require().Equal("insufficient availability for p1", err.Error())

	s.Require().Zero(s.countRows("orders"))
	s.Require().Zero(s.countRows("order_items"))
	s.Require().Zero(s.countRows("outbox"))
}

func (s *IntegrationTestSuite) TestCreateOrder_ProductServiceDown() {
	s.seedProduct(domain.Product{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 5})
	s.Products.down.Store(true)

	_, err := s.OrderService.Create(s.Ctx, "u1", []domain.LineRequest{{ProductID: "p1", Quantity: 1}})
	s.Require().Error(err)
	s.Require().True(apperr.Is(err, apperr.KindDependencyUnavailable))
	s.Require().Equal(int64(3), s.Products.hits.Load())

	s.Require().Zero(s.countRows("orders"))
}

func (s *IntegrationTestSuite) TestListOrders_CachedUntilWrite() {
	s.seedProduct(domain.Product{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 100})

	_, err := s.OrderService.Create(s.Ctx, "u1", []domain.LineRequest{{ProductID: "p1", Quantity: 1}})
	s.Require().NoError(err)

	page, err := s.OrderService.List(s.Ctx, domain.ListFilter{UserID: "u1"})
	s.Require().NoError(err)
	s.Require().Len(page.Orders, 1)

	n, err := s.RedisClient.Exists(s.Ctx, "orders:user:u1:status::page:1:limit:10").Result()
	s.Require().NoError(err)
	s.Require().Equal(int64(1), n)

	_, err = s.OrderService.Create(s.Ctx, "u1", []domain.LineRequest{{ProductID: "p1", Quantity: 2}})
	s.Require().NoError(err)

	page, err = s.OrderService.List(s.Ctx, domain.ListFilter{UserID: "u1"})
	s.Require().NoError(err)
	s.Require().Len(page.Orders, 2)
	s.Require().Equal(int64(2), page.Pagination.Total)
	s.Require().Equal(int64(2), page.Orders[0].Items[0].Quantity)
}
