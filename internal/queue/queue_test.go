package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/frahmantamala/securemind/internal/queue"
	"github.com/frahmantamala/securemind/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Queue Suite")
}

type recordingPublisher struct {
	queue  string
	bodies [][]byte
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	if r.err != nil {
		return r.err
	}
	r.queue = queueName
	r.bodies = append(r.bodies, body)
	return nil
}

type recordingAcker struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return nil
}

var _ = Describe("DeliveryPublisher", func() {
	It("publishes the job as JSON to its queue", func() {
		pub := &recordingPublisher{}
		dp := queue.NewDeliveryPublisher(pub, "notification.delivery", testutil.Logger())

		err := dp.Enqueue(context.Background(), queue.DeliveryJob{Kind: "fact", Title: "t", UserIDs: []string{"U1", "U2"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.queue).To(Equal("notification.delivery"))

		var job queue.DeliveryJob
		Expect(json.Unmarshal(pub.bodies[0], &job)).To(Succeed())
		Expect(job.UserIDs).To(ConsistOf("U1", "U2"))
	})

	It("wraps publish failures", func() {
		dp := queue.NewDeliveryPublisher(&recordingPublisher{err: errors.New("closed")}, "q", testutil.Logger())
		err := dp.Enqueue(context.Background(), queue.DeliveryJob{Kind: "policy"})
		Expect(err).To(MatchError(ContainSubstring("publish delivery job")))
	})
})

var _ = Describe("ConsumeDeliveries", func() {
	It("acks handled jobs and requeues failed ones", func() {
		acker := &recordingAcker{}
		good, _ := json.Marshal(queue.DeliveryJob{Kind: "fact"})
		bad, _ := json.Marshal(queue.DeliveryJob{Kind: "policy"})

		deliveries := make(chan amqp.Delivery, 3)
		deliveries <- amqp.Delivery{Acknowledger: acker, Body: good}
		deliveries <- amqp.Delivery{Acknowledger: acker, Body: bad}
		deliveries <- amqp.Delivery{Acknowledger: acker, Body: []byte("{")}
		close(deliveries)

		var seen []string
		err := queue.ConsumeDeliveries(context.Background(), deliveries, func(ctx context.Context, job queue.DeliveryJob) error {
			seen = append(seen, job.Kind)
			if job.Kind == "policy" {
				return errors.New("push gateway down")
			}
			return nil
		}, testutil.Logger())

		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]string{"fact", "policy"}))
		Expect(acker.acked).To(Equal(1))
		Expect(acker.nacked).To(Equal(2))
		Expect(acker.requeue).To(BeFalse())
	})
})
