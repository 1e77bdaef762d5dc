package tests

import (
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
)

func (s *IntegrationTestSuite) TestReserveAndReleaseStock() {
	keyboard := s.createProduct("Keyboard", "10.00", 5)
	mouse := s.createProduct("Mouse", "5.00", 3)

	created := &generalDomain.OrderCreatedEvent{
		OrderID: "o1",
		UserID:  "u1",
		Items: []generalDomain.OrderItem{
			{ProductID: keyboard.ID, Quantity: 2},
			{ProductID: mouse.ID, Quantity: 3},
		},
	}

	ids, err := s.ProductService.ReserveStock(s.Ctx, "e1", created)
	s.Require().NoError(err)
	s.Require().Len(ids, 2)
	s.Require().Equal(int64(3), s.stock(keyboard.ID))
	s.Require().Equal(int64(0), s.stock(mouse.ID))
	s.Require().Equal(2, s.countRows("stock_reservations"))

	_, err = s.ProductService.ReserveStock(s.Ctx, "e1", created)
	s.Require().NoError(err)
	s.Require().Equal(int64(3), s.stock(keyboard.ID))

	cancelled := &generalDomain.OrderCancelledEvent{OrderID: "o1", UserID: "u1", Items: created.Items}

	_, err = s.ProductService.ReleaseStock(s.Ctx, "e2", cancelled)
	s.Require().NoError(err)
	s.Require().Equal(int64(5), s.stock(keyboard.ID))
	s.Require().Equal(int64(3), s.stock(mouse.ID))
	s.Require().Zero(s.countRows("stock_reservations"))

	_, err = s.ProductService.ReleaseStock(s.Ctx, "e3", cancelled)
	s.Require().NoError(err)
	s.Require().Equal(int64(5), s.stock(keyboard.ID))
}

func (s *IntegrationTestSuite) TestReserveStock_ShortageRollsBackAndRecordsEvent() {
	keyboard := s.createProduct("Keyboard", "10.00", 5)
	mouse := s.createProduct("Mouse", "5.00", 1)

	_, err := s.ProductService.ReserveStock(s.Ctx, "e1", &generalDomain.OrderCreatedEvent{
		OrderID: "o1",
		UserID:  "u1",
		Items: []generalDomain.OrderItem{
			{ProductID: keyboard.ID, Quantity: 2},
			{ProductID: mouse.ID, Quantity: 2},
		},
	})
	s.Require().NoError(err)

	s.Require().Equal(int64(5), s.stock(keyboard.ID))
	s.Require().Equal(int64(1), s.stock(mouse.ID))
	s.Require().Zero(s.countRows("stock_reservations"))
	s.Require().Equal(1, s.countRows("processed_events"))

	var eventType, topic string
	err = s.DbPool.QueryRow(s.Ctx, `SELECT event_type, topic FROM outbox WHERE aggregate_id = $1`, "o1").Scan(&eventType, &topic)
	s.Require().NoError(err)
	s.Require().Equal(generalDomain.EventStockReservationFailed, eventType)
	s.Require().Equal(generalDomain.TopicProductEvents, topic)
}
