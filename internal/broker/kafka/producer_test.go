package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestPublishJSON_ShipmentCreated() {
	created := messages.ShipmentCreated{
		OrderID:        "order-1",
		Provider:       "DHL",
		TrackingNumber: "1234567890",
		TotalAmount:    42.5,
		Currency:       "USD",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	var got kafka.Message
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1
		})).
		Run(func(args mock.Arguments) { got = args.Get(1).([]kafka.Message)[0] }).
		Return(nil).
		Once()

	s.Require().NoError(s.p.PublishJSON(context.Background(), "shipment.created", created.OrderID, created))
	s.wm.AssertExpectations(s.T())

	s.Equal("shipment.created", got.Topic)
	s.Equal([]byte("order-1"), got.Key)
	s.Require().Len(got.Headers, 1)
	s.Equal("application/json", string(got.Headers[0].Value))

	var back messages.ShipmentCreated
	s.Require().NoError(json.Unmarshal(got.Value, &back))
	s.Equal(created, back)
}

func (s *ProducerSuite) TestPublishJSON_MarshalError() {
	err := s.p.PublishJSON(context.Background(), "t", "k", make(chan int))
	s.Require().ErrorContains(err, "marshal t message")
	s.wm.AssertNotCalled(s.T(), "WriteMessages", mock.Anything, mock.Anything)
}

func (s *ProducerSuite) TestPublish_RawBytes() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && msgs[0].Topic == "tracking.updated" &&
				string(msgs[0].Key) == "o-1" && string(msgs[0].Value) == "{}" && len(msgs[0].Headers) == 0
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "tracking.updated", []byte("o-1"), []byte("{}")))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	want := errors.New("boom")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), "tracking.updated", []byte("k"), []byte("v"))
	s.Require().ErrorIs(err, want)
	s.Contains(err.Error(), "kafka publish to tracking.updated")
}

func (s *ProducerSuite) TestClose() {
	s.Require().NoError(s.p.Close())

	p := NewProducer([]string{"localhost:0"})
	s.Require().NotNil(p)
	s.Require().NoError(p.Close())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
