package tests

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (s *IntegrationTestSuite) createUser(name, email string) *domain.User {
	u, err := s.UserService.Create(s.Ctx, &domain.CreateUserInput{
		Name:     name,
		Email:    email,
		Password: "secret123",
	})
	s.Require().NoError(err)
	return u
}

func (s *IntegrationTestSuite) TestCreate_StoresHash() {
	created := s.createUser("Ada", "ada@example.com")

	var hash, role string
	err := s.DbPool.QueryRow(s.Ctx, `SELECT password_hash, role FROM users WHERE id = $1`, created.ID).Scan(&hash, &role)
	s.Require().NoError(err)
	s.Require().Equal("user", role)
	s.Require().NoError(bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret123")))
}

func (s *IntegrationTestSuite) TestCreate_DuplicateEmail() {
	s.createUser("Ada", "ada@example.com")

	_, err := s.UserService.Create(s.Ctx, &domain.CreateUserInput{
		Name:     "Other",
		Email:    "ADA@example.com",
		Password: "secret123",
	})
	s.Require().True(apperr.Is(err, apperr.KindValidation))
}

func (s *IntegrationTestSuite) TestFindByID_Cached() {
	created := s.createUser("Ada", "ada@example.com")

	_, err := s.UserService.FindByID(s.Ctx, created.ID)
	s.Require().NoError(err)

	cached, err := s.RedisClient.Exists(s.Ctx, "user:"+created.ID).Result()
	s.Require().NoError(err)
	s.Require().Equal(int64(1), cached)

	name := "Ada King"
	_, err = s.UserService.Update(s.Ctx, created.ID, &domain.UpdateUserInput{Name: &name})
	s.Require().NoError(err)

	cached, err = s.RedisClient.Exists(s.Ctx, "user:"+created.ID).Result()
	s.Require().NoError(err)
	s.Require().Zero(cached)

	found, err := s.UserService.FindByID(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Equal(name, found.Name)
	s.Require().Equal("ada@example.com", found.Email)
}

func (s *IntegrationTestSuite) TestUpdate_EmailConflict() {
	s.createUser("Ada", "ada@example.com")
	other := s.createUser("Grace", "grace@example.com")

	email := "ada@example.com"
	_, err := s.UserService.Update(s.Ctx, other.ID, &domain.UpdateUserInput{Email: &email})
	s.Require().True(apperr.Is(err, apperr.KindValidation))
}

func (s *IntegrationTestSuite) TestListAndDelete() {
	ada := s.createUser("Ada", "ada@example.com")
	s.createUser("Grace", "grace@example.com")

	page, err := s.UserService.List(s.Ctx, domain.ListFilter{Limit: 1})
	s.Require().NoError(err)
	s.Require().EqualValues(2, page.Pagination.Total)
	s.Require().EqualValues(2, page.Pagination.Pages)
	s.Require().Len(page.Users, 1)

	s.Require().NoError(s.UserService.Delete(s.Ctx, ada.ID))

	_, err = s.UserService.FindByID(s.Ctx, ada.ID)
	s.Require().True(apperr.Is(err, apperr.KindNotFound))

	page, err = s.UserService.List(s.Ctx, domain.ListFilter{})
	s.Require().NoError(err)
	s.Require().EqualValues(1, page.Pagination.Total)
}
