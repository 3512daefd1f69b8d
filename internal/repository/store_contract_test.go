package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptflow/backend/pkg/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	sess, err := store.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	t.Run("Create and Get workflow", func(t *testing.T) {
		w := &models.Workflow{Name: "summarize", Description: strPtr("two step summary")}
		require.NoError(t, sess.CreateWorkflow(ctx, w))
		assert.NotZero(t, w.ID)
		assert.Empty(t, w.Steps)

		got, err := sess.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "summarize", got.Name)
		require.NotNil(t, got.Description)
		assert.Equal(t, "two step summary", *got.Description)
		assert.NotNil(t, got.Steps)
		assert.Empty(t, got.Steps)
	})

	t.Run("Description is optional", func(t *testing.T) {
		w := &models.Workflow{Name: "bare"}
		require.NoError(t, sess.CreateWorkflow(ctx, w))

		got, err := sess.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Description)
	})

	t.Run("Unknown workflow", func(t *testing.T) {
		_, err := sess.GetWorkflow(ctx, 999999)
		assert.ErrorIs(t, err, ErrNotFound)

		err = sess.CreateStep(ctx, &models.Step{WorkflowID: 999999, Prompt: "x"})
		assert.ErrorIs(t, err, ErrNotFound)

		steps, err := sess.ListSteps(ctx, 999999)
		require.NoError(t, err)
		assert.Empty(t, steps)
	})

	t.Run("Steps keep creation order", func(t *testing.T) {
		w := &models.Workflow{Name: "ordered"}
		require.NoError(t, sess.CreateWorkflow(ctx, w))

		for i := 1; i <= 5; i++ {
			s := &models.Step{WorkflowID: w.ID, Prompt: fmt.Sprintf("prompt %d", i)}
			require.NoError(t, sess.CreateStep(ctx, s))
			assert.NotZero(t, s.ID)
		}

		steps, err := sess.ListSteps(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, steps, 5)
		for i, s := range steps {
			assert.Equal(t, fmt.Sprintf("prompt %d", i+1), s.Prompt)
			assert.Equal(t, w.ID, s.WorkflowID)
			assert.Nil(t, s.Result)
			assert.Nil(t, s.Progress)
		}
	})

	t.Run("Step with initial result", func(t *testing.T) {
		w := &models.Workflow{Name: "prefilled"}
		require.NoError(t, sess.CreateWorkflow(ctx, w))

		s := &models.Step{WorkflowID: w.ID, Prompt: "p", Result: strPtr("r"), Progress: intPtr(0)}
		require.NoError(t, sess.CreateStep(ctx, s))

		got, err := sess.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, got.Steps, 1)
		assert.Equal(t, "r", *got.Steps[0].Result)
		assert.Equal(t, 0, *got.Steps[0].Progress)
	})

	t.Run("Update step result", func(t *testing.T) {
		w := &models.Workflow{Name: "update"}
		require.NoError(t, sess.CreateWorkflow(ctx, w))
		s := &models.Step{WorkflowID: w.ID, Prompt: "p"}
		require.NoError(t, sess.CreateStep(ctx, s))

		require.NoError(t, sess.UpdateStepResult(ctx, s.ID, "generated", models.ProgressComplete))

		steps, err := sess.ListSteps(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, steps, 1)
		assert.Equal(t, "generated", *steps[0].Result)
		assert.Equal(t, 100, *steps[0].Progress)

		assert.ErrorIs(t, sess.UpdateStepResult(ctx, 999999, "x", 100), ErrNotFound)
	})

	t.Run("List workflows nests steps", func(t *testing.T) {
		a := &models.Workflow{Name: "list-a"}
		b := &models.Workflow{Name: "list-b"}
		require.NoError(t, sess.CreateWorkflow(ctx, a))
		require.NoError(t, sess.CreateWorkflow(ctx, b))
		require.NoError(t, sess.CreateStep(ctx, &models.Step{WorkflowID: b.ID, Prompt: "b1"}))
		require.NoError(t, sess.CreateStep(ctx, &models.Step{WorkflowID: a.ID, Prompt: "a1"}))
		require.NoError(t, sess.CreateStep(ctx, &models.Step{WorkflowID: b.ID, Prompt: "b2"}))

		all, err := sess.ListWorkflows(ctx)
		require.NoError(t, err)

		byName := map[string]*models.Workflow{}
		for _, w := range all {
			byName[w.Name] = w
			assert.NotNil(t, w.Steps)
		}
		require.Contains(t, byName, "list-a")
		require.Contains(t, byName, "list-b")
		require.Len(t, byName["list-a"].Steps, 1)
		require.Len(t, byName["list-b"].Steps, 2)
		assert.Equal(t, "b1", byName["list-b"].Steps[0].Prompt)
		assert.Equal(t, "b2", byName["list-b"].Steps[1].Prompt)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
