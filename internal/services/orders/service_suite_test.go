package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	cachemocks "github.com/BearBump/WasteTrack/internal/cache/mocks"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/BearBump/WasteTrack/internal/pipeline"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	ordersmocks "github.com/BearBump/WasteTrack/internal/services/orders/mocks"
)

type ServiceSuite struct {
	suite.Suite

	store *ordersmocks.MockOrderStore
	audit *ordersmocks.MockAuditSink
	cache *cachemocks.MockBytesCache
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = &ordersmocks.MockOrderStore{}
	s.audit = &ordersmocks.MockAuditSink{}
	s.cache = &cachemocks.MockBytesCache{}
	s.svc = New(s.store, s.audit, nil, s.cache, 10*time.Minute)
}

func (s *ServiceSuite) TestTransition_WritesExpectedStageAndAudits() {
	s.store.On("GetOrder", mock.Anything, "o1").
		Return(&models.Order{ID: "o1", RawStatus: "RECOLECTADA"}, nil).
		Once()
	s.store.On("UpdateStage", mock.Anything, "o1", pipeline.EnRouteToDepot, pipeline.Collected).
		Return(&models.Order{ID: "o1", RawStatus: "EN_ROUTE_TO_DEPOT"}, nil).
		Once()
	s.cache.On("Delete", mock.Anything, "order:o1:current").
		Return(nil).
		Once()
	s.audit.On("Append", mock.Anything, mock.MatchedBy(func(ev models.AuditEvent) bool {
		return ev.OrderID == "o1" &&
			ev.PreviousStage == "COLLECTED" &&
			ev.NewStage == "EN_ROUTE_TO_DEPOT" &&
			ev.ActorRole == models.RoleOperator &&
			ev.Kind == models.AuditKindProgression &&
			ev.ID != ""
	})).Return(nil).Once()

	res, err := s.svc.AttemptTransition(context.Background(), TransitionRequest{
		OrderID: "o1", From: pipeline.Collected, To: pipeline.EnRouteToDepot,
		Actor: models.Actor{ID: "op-1", Role: models.RoleOperator},
	})
	s.Require().NoError(err)
	s.Require().NoError(res.AuditErr)
	s.Require().Equal("EN_ROUTE_TO_DEPOT", res.Order.RawStatus)

	s.store.AssertExpectations(s.T())
	s.audit.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestTransition_Rejected_NoWriteNoAudit() {
	s.store.On("GetOrder", mock.Anything, "o1").
		Return(&models.Order{ID: "o1", RawStatus: "COMPLETADA"}, nil).
		Once()

	_, err := s.svc.AttemptTransition(context.Background(), TransitionRequest{
		OrderID: "o1", From: pipeline.Certified, To: pipeline.Cancelled,
		Actor: models.Actor{ID: "adm", Role: models.RoleAdmin},
	})
	s.Require().ErrorIs(err, models.ErrOrderClosed)

	s.store.AssertNotCalled(s.T(), "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.audit.AssertNotCalled(s.T(), "Append", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_LostRace_NoAudit() {
	s.store.On("GetOrder", mock.Anything, "o1").
		Return(&models.Order{ID: "o1", RawStatus: "SCHEDULED"}, nil).
		Once()
	s.store.On("UpdateStage", mock.Anything, "o1", pipeline.Cancelled, pipeline.Scheduled).
		Return(nil, models.ErrConcurrentModification).
		Once()

	_, err := s.svc.AttemptTransition(context.Background(), TransitionRequest{
		OrderID: "o1", From: pipeline.Scheduled, To: pipeline.Cancelled,
		Actor: models.Actor{ID: "op", Role: models.RoleOperator},
	})
	s.Require().ErrorIs(err, models.ErrConcurrentModification)
	s.audit.AssertNotCalled(s.T(), "Append", mock.Anything, mock.Anything)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.cache.AssertNotCalled(s.T(), "Delete", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_AuditSinkDown_ChangeStands() {
	s.store.On("GetOrder", mock.Anything, "o1").
		Return(&models.Order{ID: "o1", RawStatus: "SCHEDULED"}, nil).
		Once()
	s.store.On("UpdateStage", mock.Anything, "o1", pipeline.Collected, pipeline.Scheduled).
		Return(&models.Order{ID: "o1", RawStatus: "COLLECTED"}, nil).
		Once()
	s.cache.On("Delete", mock.Anything, "order:o1:current").Return(nil)
	s.audit.On("Append", mock.Anything, mock.Anything).Return(errors.New("broker unavailable")).Once()

	res, err := s.svc.AttemptTransition(context.Background(), TransitionRequest{
		OrderID: "o1", From: pipeline.Scheduled, To: pipeline.Collected,
		Actor: models.Actor{ID: "op", Role: models.RoleOperator},
	})
	s.Require().NoError(err)
	s.Require().ErrorIs(res.AuditErr, models.ErrAuditAppendFailed)
	s.Require().Equal("COLLECTED", res.Order.RawStatus)
}

func (s *ServiceSuite) TestTransition_InvalidatesInsteadOfWriting() {
	s.store.On("GetOrder", mock.Anything, "o1").
		Return(&models.Order{ID: "o1", RawStatus: "SCHEDULED"}, nil).
		Once()
	s.store.On("UpdateStage", mock.Anything, "o1", pipeline.EnRouteToPickup, pipeline.Scheduled).
		Return(&models.Order{ID: "o1", RawStatus: "EN_ROUTE_TO_PICKUP"}, nil).
		Once()
	s.cache.On("Delete", mock.Anything, "order:o1:current").Return(errors.New("redis down")).Once()
	s.audit.On("Append", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := s.svc.AttemptTransition(context.Background(), TransitionRequest{
		OrderID: "o1", From: pipeline.Scheduled, To: pipeline.EnRouteToPickup,
		Actor: models.Actor{ID: "op", Role: models.RoleOperator},
	})
	s.Require().NoError(err, "cache failure does not fail the transition")
	s.Require().Equal("EN_ROUTE_TO_PICKUP", res.Order.RawStatus)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetOrder_CacheHit_NoDB() {
	b, _ := json.Marshal(&models.Order{ID: "o9", CustomerID: "c1", RawStatus: "AT_DEPOT"})
	s.cache.On("Get", mock.Anything, "order:o9:current").Return(b, true, nil).Once()

	o, err := s.svc.GetOrder(context.Background(), models.Actor{ID: "c1", Role: models.RoleCustomer}, "o9")
	s.Require().NoError(err)
	s.Require().Equal("AT_DEPOT", o.RawStatus)

	// DB не должен трогаться
	s.store.AssertNotCalled(s.T(), "GetOrder", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetOrder_CacheMiss_FillsCache() {
	s.cache.On("Get", mock.Anything, "order:o9:current").Return(nil, false, nil).Once()
	s.store.On("GetOrder", mock.Anything, "o9").
		Return(&models.Order{ID: "o9", CustomerID: "c1", RawStatus: "AT_DEPOT"}, nil).
		Once()
	s.cache.On("Set", mock.Anything, "order:o9:current", mock.Anything, 10*time.Minute).Return(nil).Once()

	_, err := s.svc.GetOrder(context.Background(), models.Actor{ID: "adm", Role: models.RoleAdmin}, "o9")
	s.Require().NoError(err)
	s.store.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetOrder_CacheTTLZero_TreatedAsDisabled() {
	svc := New(s.store, nil, nil, s.cache, 0)
	s.store.On("GetOrder", mock.Anything, "o1").
		Return(&models.Order{ID: "o1", CustomerID: "c1"}, nil).
		Once()

	_, err := svc.GetOrder(context.Background(), models.Actor{ID: "c1", Role: models.RoleCustomer}, "o1")
	s.Require().NoError(err)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestListOrders_CustomerFilterForced() {
	s.store.On("ListOrders", mock.Anything, models.OrderFilter{CustomerID: "c1", Limit: 10}).
		Return([]*models.Order{{ID: "o1"}}, nil).
		Once()

	out, err := s.svc.ListOrders(context.Background(), models.Actor{ID: "c1", Role: models.RoleCustomer}, models.OrderFilter{CustomerID: "c2", Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.store.AssertExpectations(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
