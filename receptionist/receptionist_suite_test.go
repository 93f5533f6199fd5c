package receptionist

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/DistCompiler/pgo/restaurant/shm"
	"github.com/DistCompiler/pgo/restaurant/statelog"
)

// tableView is the part of a snapshot the allocation scenario is about.
type tableView struct {
	assigned      [2]int
	groupsWaiting int
}

func viewOf(s statelog.Snapshot) tableView {
	return tableView{assigned: [2]int{s.AssignedTable[0], s.AssignedTable[1]}, groupsWaiting: s.GroupsWaiting}
}

var _ = Describe("Receptionist", func() {
	const x = shm.None

	var (
		reg     *shm.Registry
		key     shm.Key
		client  *Client
		history *statelog.History
		ctx     context.Context
		cancel  context.CancelFunc
		done    chan error
		stopped chan struct{}
	)

	readState := func() tableView {
		att, err := reg.Attach(key)
		Expect(err).NotTo(HaveOccurred())
		defer att.Detach()
		g, err := att.Lock(ctx)
		Expect(err).NotTo(HaveOccurred())
		st := g.State()
		view := tableView{assigned: [2]int{st.AssignedTable[0], st.AssignedTable[1]}, groupsWaiting: st.GroupsWaiting}
		Expect(g.Unlock()).To(Succeed())
		return view
	}

	BeforeEach(func() {
		reg = shm.NewRegistry()
		key = shm.KeyOf("receptionist suite")
		Expect(reg.Create(key, 2, 1)).To(Succeed())

		att, err := reg.Attach(key)
		Expect(err).NotTo(HaveOccurred())
		history = statelog.NewHistory()
		r := New(att, SetSink(history))

		clientAtt, err := reg.Attach(key)
		Expect(err).NotTo(HaveOccurred())
		client = NewClient(clientAtt)

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		done = make(chan error, 1)
		stopped = make(chan struct{})
		// each spec's receptionist reports only through its own channels
		go func(ctx context.Context, done chan<- error, stopped chan<- struct{}) {
			defer close(stopped)
			done <- r.Run(ctx)
		}(ctx, done, stopped)
	})

	AfterEach(func() {
		cancel()
		Expect(reg.Close()).To(Succeed())
		Eventually(stopped).Should(BeClosed())
	})

	Describe("two groups sharing one table", func() {
		It("seats, queues and hands over the table in order", func() {
			By("group 0 asking for a table")
			Expect(client.SubmitRequest(ctx, shm.TableReq, 0)).To(Succeed())
			Expect(client.WaitForTableReady(ctx, 0)).To(Equal(0))
			Expect(readState()).To(Equal(tableView{assigned: [2]int{0, x}}))

			By("group 1 asking for a table while it is taken")
			Expect(client.SubmitRequest(ctx, shm.TableReq, 1)).To(Succeed())
			Eventually(readState).Should(Equal(tableView{assigned: [2]int{0, x}, groupsWaiting: 1}))

			By("group 0 paying")
			Expect(client.SubmitRequest(ctx, shm.BillReq, 0)).To(Succeed())
			Expect(client.WaitForTableReady(ctx, 1)).To(Equal(0))
			Expect(client.WaitForTableVacated(ctx, 0)).To(Succeed())
			Expect(readState()).To(Equal(tableView{assigned: [2]int{x, 0}}))

			By("group 1 paying")
			Expect(client.SubmitRequest(ctx, shm.BillReq, 1)).To(Succeed())
			Expect(client.WaitForTableVacated(ctx, 0)).To(Succeed())
			Expect(readState()).To(Equal(tableView{assigned: [2]int{x, x}}))

			By("stopping after four requests")
			Eventually(done).Should(Receive(BeNil()))

			var views []tableView
			for _, s := range history.Snapshots() {
				v := viewOf(s)
				if len(views) == 0 || views[len(views)-1] != v {
					views = append(views, v)
				}
			}
			Expect(views).To(Equal([]tableView{
				{assigned: [2]int{x, x}},
				{assigned: [2]int{0, x}},
				{assigned: [2]int{0, x}, groupsWaiting: 1},
				{assigned: [2]int{x, 0}},
				{assigned: [2]int{x, x}},
			}))
		})

		It("records its own phase in every snapshot", func() {
			Expect(client.SubmitRequest(ctx, shm.TableReq, 0)).To(Succeed())
			Expect(client.WaitForTableReady(ctx, 0)).To(Equal(0))
			Expect(client.SubmitRequest(ctx, shm.BillReq, 0)).To(Succeed())
			Expect(client.WaitForTableVacated(ctx, 0)).To(Succeed())

			var phases []int
			for _, s := range history.Snapshots() {
				if len(phases) == 0 || phases[len(phases)-1] != s.ReceptionistStat {
					phases = append(phases, s.ReceptionistStat)
				}
			}
			Expect(len(phases)).To(BeNumerically(">=", 4))
			Expect(phases[:4]).To(Equal([]int{shm.WaitRequest, shm.AssignTable, shm.WaitRequest, shm.ReceivePayment}))
		})
	})

	Describe("protocol violations", func() {
		It("fails on a bill from a group without a table", func() {
			Expect(client.SubmitRequest(ctx, shm.BillReq, 1)).To(Succeed())
			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, ErrProtocol)).To(BeTrue())
		})

		It("fails on a second table request from the same group", func() {
			Expect(client.SubmitRequest(ctx, shm.TableReq, 0)).To(Succeed())
			Expect(client.WaitForTableReady(ctx, 0)).To(Equal(0))
			Expect(client.SubmitRequest(ctx, shm.TableReq, 0)).To(Succeed())
			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, ErrProtocol)).To(BeTrue())
		})

		It("refuses to carry requests meant for the waiter", func() {
			err := client.SubmitRequest(ctx, shm.FoodReq, 0)
			Expect(errors.Is(err, ErrProtocol)).To(BeTrue())
		})
	})
})

func TestReceptionist(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Receptionist")
}
