package tests

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) TestCreateAndFind() {
	created := s.createProduct("Keyboard", "10.00", 5)

	found, err := s.ProductService.FindByID(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Equal("Keyboard", found.Name)
	s.Require().True(decimal.RequireFromString("10.00").Equal(found.Price))
	s.Require().Equal(int64(5), found.Stock)

	cached, err := s.RedisClient.Exists(s.Ctx, "product:"+created.ID).Result()
	s.Require().NoError(err)
	s.Require().Equal(int64(1), cached)
}

func (s *IntegrationTestSuite) TestUpdate_ChangesOnlyGivenFields() {
	created := s.createProduct("Keyboard", "10.00", 5)

	_, err := s.ProductService.FindByID(s.Ctx, created.ID)
	s.Require().NoError(err)

	price := decimal.RequireFromString("15.99")
	updated, err := s.ProductService.Update(s.Ctx, created.ID, &domain.UpdateProductInput{Price: &price})
	s.Require().NoError(err)
	s.Require().Equal("Keyboard", updated.Name)
	s.Require().True(price.Equal(updated.Price))
	s.Require().True(updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))

	found, err := s.ProductService.FindByID(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Require().True(price.Equal(found.Price))
}

func (s *IntegrationTestSuite) TestDelete_IsSoft() {
	created := s.createProduct("Keyboard", "10.00", 5)

	s.Require().NoError(s.ProductService.Delete(s.Ctx, created.ID))

	_, err := s.ProductService.FindByID(s.Ctx, created.ID)
	s.Require().True(apperr.Is(err, apperr.KindNotFound))
	s.Require().Equal(1, s.countRows("products"))

	err = s.ProductService.Delete(s.Ctx, created.ID)
	s.Require().True(apperr.Is(err, apperr.KindNotFound))
}

func (s *IntegrationTestSuite) TestList_FiltersAndPages() {
	s.createProduct("Keyboard", "10.00", 5)
	s.createProduct("Mouse", "5.00", 5)
	s.createProduct("Mouse pad", "2.00", 5)

	page, err := s.ProductService.List(s.Ctx, domain.ListFilter{Search: "mouse", Limit: 1})
	s.Require().NoError(err)
	s.Require().Equal(int64(2), page.Pagination.Total)
	s.Require().Equal(int64(2), page.Pagination.Pages)
	s.Require().Len(page.Products, 1)
	s.Require().Equal("Mouse pad", page.Products[0].Name)

	page, err = s.ProductService.List(s.Ctx, domain.ListFilter{Category: "furniture"})
	s.Require().NoError(err)
	s.Require().Empty(page.Products)
	s.Require().Equal(int64(0), page.Pagination.Total)
}
