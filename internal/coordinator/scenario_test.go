/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package coordinator

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/config"
)

// Both backends must carry the same agent workflow: plan, hand off, report.
var _ = DescribeTable("agent workflow",
	func(backend string) {
		ctx := context.Background()
		cfg := config.Default()
		cfg.Backend = backend
		cfg.Ledger.DSN = filepath.Join(GinkgoT().TempDir(), "conclave.db")
		c, closeFn, err := New(ctx, cfg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(closeFn)

		By("the planner recording the project state")
		_, err = c.SaveState(ctx, v1alpha1.ProjectState{
			Phase:       v1alpha1.PhasePlanning,
			NextActions: []string{"assign smoke tests"},
		})
		Expect(err).NotTo(HaveOccurred())

		By("assigning a task to QA and notifying it")
		id, err := c.SaveTask(ctx, "QA Agent", "Run smoke tests", v1alpha1.TaskPending, nil, map[string]any{"phase": "testing"})
		Expect(err).NotTo(HaveOccurred())
		_, err = c.Send(ctx, "Planner", "QA Agent", "please run "+id, v1alpha1.MessageRequest, map[string]any{"task": id})
		Expect(err).NotTo(HaveOccurred())

		By("QA reading its inbox and its pending work")
		inbox, err := c.Inbox(ctx, "QA Agent")
		Expect(err).NotTo(HaveOccurred())
		Expect(inbox).To(HaveLen(1))
		Expect(inbox[0].Data).To(HaveKeyWithValue("task", id))

		pending, err := c.TasksFor(ctx, "QA Agent", v1alpha1.TaskPending)
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(ConsistOf(HaveField("ID", id)))

		By("QA completing the task and answering")
		Expect(c.UpdateTask(ctx, id, v1alpha1.TaskCompleted, "12/12 passed")).To(Succeed())
		_, err = c.Send(ctx, "QA Agent", "Planner", "done", v1alpha1.MessageResponse, nil)
		Expect(err).NotTo(HaveOccurred())

		done, err := c.TasksFor(ctx, "QA Agent", v1alpha1.TaskCompleted)
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(ConsistOf(And(HaveField("ID", id), HaveField("Result", "12/12 passed"))))

		planner, err := c.Inbox(ctx, "Planner")
		Expect(err).NotTo(HaveOccurred())
		Expect(planner).To(HaveLen(2))

		By("reading the project state back")
		st, err := c.CurrentState(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(st).NotTo(BeNil())
		Expect(st.Phase).To(Equal(v1alpha1.PhasePlanning))
	},
	Entry("semantic backend", config.BackendSemantic),
	Entry("ledger backend", config.BackendLedger),
)

var _ = Describe("concurrent status updates", func() {
	var (
		ctx context.Context
		c   *Coordinator
		id  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg := config.Default()
		cfg.Backend = config.BackendLedger
		cfg.Ledger.DSN = filepath.Join(GinkgoT().TempDir(), "conclave.db")
		var (
			closeFn func() error
			err     error
		)
		c, closeFn, err = New(ctx, cfg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(closeFn)

		id, err = c.SaveTask(ctx, "Dev", "Claim the login ticket", v1alpha1.TaskPending, nil, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lets exactly one agent claim a pending task", func() {
		const agents = 6
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < agents; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := c.UpdateTaskIf(ctx, id, v1alpha1.TaskPending, v1alpha1.TaskInProgress, "")
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
					return
				}
				Expect(IsConflict(err)).To(BeTrue())
			}()
		}
		wg.Wait()
		Expect(winners).To(Equal(1))

		task, err := c.Task(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Status).To(Equal(v1alpha1.TaskInProgress))
	})

	It("keeps the last unconditional update", func() {
		Expect(c.UpdateTask(ctx, id, v1alpha1.TaskInProgress, "")).To(Succeed())
		Expect(c.UpdateTask(ctx, id, v1alpha1.TaskFailed, "timeout")).To(Succeed())

		task, err := c.Task(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Status).To(Equal(v1alpha1.TaskFailed))
		Expect(task.Result).To(Equal("timeout"))
	})
})
