package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountpass/internal/passes/media"
	"mountpass/internal/passes/models"
	passstore "mountpass/internal/passes/store/pass"
	submitterstore "mountpass/internal/passes/store/submitter"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/requestcontext"
	"mountpass/pkg/testutil"
)

func TestModerationGatesEdits(t *testing.T) {
	svc := New(submitterstore.NewInMemory(), passstore.NewInMemory(), media.New(t.TempDir(), "/media", 1<<20))
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC))
	rename := func(title string) UpdateInput {
		return UpdateInput{Fields: models.PassFieldsPatch{Title: &title}}
	}

	testutil.Given(t, "a freshly submitted pass", func(t *testing.T) {
		pass, err := svc.Create(ctx, validInput("tourist@example.com"))
		require.NoError(t, err)
		require.Equal(t, models.StatusNew, pass.Status)

		testutil.When(t, "the submitter edits it before review", func(t *testing.T) {
			updated, err := svc.Update(ctx, pass.ID, rename("Пхия Южный"))

			testutil.Then(t, "the edit is stored", func(t *testing.T) {
				require.NoError(t, err)
				assert.Equal(t, "Пхия Южный", updated.Title)
			})
		})

		for _, status := range []models.Status{models.StatusPending, models.StatusAccepted, models.StatusRejected} {
			testutil.When(t, "a moderator sets it to "+string(status), func(t *testing.T) {
				_, err := svc.SetStatus(ctx, pass.ID, status)
				require.NoError(t, err)
				_, err = svc.Update(ctx, pass.ID, rename("x"))

				testutil.Then(t, "further edits are rejected as validation errors", func(t *testing.T) {
					require.Error(t, err)
					assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
					assert.Equal(t, models.NotEditableMessage, dErrors.MessageOf(err))
				})
			})
		}

		testutil.When(t, "a moderator returns it to new", func(t *testing.T) {
			_, err := svc.SetStatus(ctx, pass.ID, models.StatusNew)
			require.NoError(t, err)
			updated, err := svc.Update(ctx, pass.ID, rename("Пхия"))

			testutil.Then(t, "it is editable again", func(t *testing.T) {
				require.NoError(t, err)
				assert.True(t, updated.CanBeEdited())
			})
		})
	})
}
