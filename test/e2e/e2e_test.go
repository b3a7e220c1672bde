//go:build e2e

/*
Copyright (c) 2026 GeneClackman
SPDX-License-Identifier: MIT
*/

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/activity"
	"github.com/hortator-ai/conclave/internal/config"
	"github.com/hortator-ai/conclave/internal/gateway"
)

const token = "e2e-agent-key"

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer l.Close()
	return l.Addr().String()
}

var _ = Describe("gateway", Ordered, func() {
	var (
		base   string
		cancel context.CancelFunc
		done   chan error
	)

	call := func(method, path string, body any, out any) int {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req, err := http.NewRequest(method, base+path, &buf)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		if out != nil && resp.StatusCode < 300 {
			Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
		}
		return resp.StatusCode
	}

	BeforeAll(func() {
		cfg := config.Default()
		cfg.Backend = config.BackendLedger
		cfg.Mirror = true
		cfg.Activity.Enabled = true
		cfg.Ledger.DSN = filepath.Join(GinkgoT().TempDir(), "conclave.db")
		cfg.Server.Addr = freeAddr()
		cfg.Server.AuthTokens = []string{token}
		base = "http://" + cfg.Server.Addr

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- gateway.Run(ctx, cfg, logr.Discard()) }()

		By("waiting for the gateway to become healthy")
		Eventually(func() int {
			resp, err := http.Get(base + "/healthz")
			if err != nil {
				return 0
			}
			resp.Body.Close()
			return resp.StatusCode
		}, 10*time.Second, 100*time.Millisecond).Should(Equal(http.StatusOK))
	})

	AfterAll(func() {
		By("shutting the gateway down")
		cancel()
		Eventually(done, 15*time.Second).Should(Receive(BeNil()))
	})

	It("rejects requests without a token", func() {
		resp, err := http.Get(base + "/v1/state")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("coordinates a planner and a QA agent", func() {
		var task gateway.IDResponse
		Expect(call(http.MethodPost, "/v1/tasks", gateway.SaveTaskRequest{
			Agent: "QA Agent", Description: "Run smoke tests", Metadata: map[string]any{"phase": "testing"},
		}, &task)).To(Equal(http.StatusCreated))

		Expect(call(http.MethodPost, "/v1/messages", map[string]any{
			"from": "Planner", "to": "QA Agent", "message": "please run " + task.ID, "type": "request",
		}, nil)).To(Equal(http.StatusCreated))

		var inbox []v1alpha1.Communication
		Expect(call(http.MethodGet, "/v1/agents/QA%20Agent/messages", nil, &inbox)).To(Equal(http.StatusOK))
		Expect(inbox).To(HaveLen(1))

		claim := gateway.UpdateTaskRequest{Status: v1alpha1.TaskInProgress, ExpectedStatus: v1alpha1.TaskPending}
		Expect(call(http.MethodPatch, "/v1/tasks/"+task.ID, claim, nil)).To(Equal(http.StatusNoContent))
		Expect(call(http.MethodPatch, "/v1/tasks/"+task.ID, claim, nil)).To(Equal(http.StatusConflict))

		Expect(call(http.MethodPatch, "/v1/tasks/"+task.ID, gateway.UpdateTaskRequest{
			Status: v1alpha1.TaskCompleted, Result: "12/12 passed",
		}, nil)).To(Equal(http.StatusNoContent))

		var related []v1alpha1.Task
		Expect(call(http.MethodGet, "/v1/search/tasks?q=smoke+tests&k=3", nil, &related)).To(Equal(http.StatusOK))
		Expect(related).To(ContainElement(And(
			HaveField("ID", task.ID),
			HaveField("Status", v1alpha1.TaskCompleted),
		)))

		var trail []activity.Entry
		Expect(call(http.MethodGet, "/v1/activity?agent=QA%20Agent", nil, &trail)).To(Equal(http.StatusOK))
		Expect(trail).To(ContainElement(HaveField("Action", "task.save")))
	})

	It("versions the project state", func() {
		var first v1alpha1.ProjectState
		zero := int64(0)
		Expect(call(http.MethodPut, "/v1/state", gateway.SaveStateRequest{
			ProjectState: v1alpha1.ProjectState{Phase: v1alpha1.PhaseTesting}, ExpectedVersion: &zero,
		}, &first)).To(Equal(http.StatusOK))

		Expect(call(http.MethodPut, "/v1/state", gateway.SaveStateRequest{
			ProjectState: v1alpha1.ProjectState{Phase: v1alpha1.PhaseDeployment}, ExpectedVersion: &zero,
		}, nil)).To(Equal(http.StatusConflict))

		var cur v1alpha1.ProjectState
		Expect(call(http.MethodGet, "/v1/state", nil, &cur)).To(Equal(http.StatusOK))
		Expect(cur.ID).To(Equal(first.ID))
	})

	It("exposes metrics", func() {
		resp, err := http.Get(base + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		Expect(buf.String()).To(ContainSubstring(fmt.Sprintf("conclave_operations_total{backend=%q", config.BackendLedger)))
	})
})
