package tests

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) createOrder() *domain.Order {
	s.seedProduct(domain.Product{ID: "p1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: 100})

	order, err := s.OrderService.Create(s.Ctx, "u1", []domain.LineRequest{{ProductID: "p1", Quantity: 1}})
	s.Require().NoError(err)

	return order
}

func (s *IntegrationTestSuite) TestConfirmThenCancel() {
	order := s.createOrder()

	_, err := s.OrderService.UpdateStatus(s.Ctx, order.ID, domain.OrderStatusConfirmed)
	s.Require().NoError(err)

	cancelled, err := s.OrderService.Cancel(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Require().Equal("cancelled", s.orderStatus(order.ID))

	var eventType string
	err = s.DbPool.QueryRow(
		s.Ctx,
		`SELECT event_type FROM outbox WHERE aggregate_id = $1 ORDER BY created_at DESC LIMIT 1`,
		order.ID,
	).Scan(&eventType)
	s.Require().NoError(err)
	s.Require().Equal(generalDomain.EventOrderCancelled, eventType)
}

func (s *IntegrationTestSuite) TestCancelShipped_Rejected() {
	order := s.createOrder()

	_, err := s.OrderService.UpdateStatus(s.Ctx, order.ID, domain.OrderStatusShipped)
	s.Require().NoError(err)

	_, err = s.OrderService.Cancel(s.Ctx, order.ID)
	s.Require().Error(err)
	s.Require().True(apperr.Is(err, apperr.KindStateConflict))
	s.Require().Equal("shipped", s.orderStatus(order.ID))
}

func (s *IntegrationTestSuite) TestCancel_NotFound() {
	_, err := s.OrderService.Cancel(s.Ctx, "missing")
	s.Require().Error(err)
	s.Require().True(apperr.Is(err, apperr.KindNotFound))
}

func (s *IntegrationTestSuite) TestStockReservationFailed_IsIdempotent() {
	order := s.createOrder()

	event := &generalDomain.StockReservationFailedEvent{OrderID: order.ID, ProductID: "p1", Available: 0, Requested: 1}

	cancelled, err := s.OrderService.HandleStockReservationFailed(s.Ctx, "evt-1", event)
	s.Require().NoError(err)
	s.Require().NotNil(cancelled)
	s.Require().Equal("cancelled", s.orderStatus(order.ID))

	again, err := s.OrderService.HandleStockReservationFailed(s.Ctx, "evt-1", event)
	s.Require().NoError(err)
	s.Require().Nil(again)
	s.Require().Equal(1, s.countRows("processed_events"))
}

func (s *IntegrationTestSuite) TestAdminDelete() {
	order := s.createOrder()

	_, err := s.OrderService.GetItems(s.Ctx, order.ID)
	s.Require().NoError(err)

	_, err = s.OrderService.Delete(s.Ctx, order.ID)
	s.Require().NoError(err)

	s.Require().Zero(s.countRows("orders"))
	s.Require().Zero(s.countRows("order_items"))

	_, err = s.OrderService.GetItems(s.Ctx, order.ID)
	s.Require().True(apperr.Is(err, apperr.KindNotFound))
}
