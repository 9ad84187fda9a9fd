package lifecycle

import (
	"testing"
	"time"

	"github.com/airenas/tolka/internal/pkg/notification"
	"github.com/airenas/tolka/internal/pkg/persistence"
	"github.com/airenas/tolka/internal/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2023, 3, 10, 12, 0, 0, 0, time.UTC)

func newMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(notification.NewPolicy(func() time.Time { return testNow }))
	require.Nil(t, err)
	return m
}

func newEnv(st status.Status) *Env {
	return &Env{
		Job: &persistence.Job{ID: "j1", UserID: "c1", Status: st.String(),
			Due: testNow.Add(48 * time.Hour)},
		Customer:   &persistence.User{ID: "c1", Email: "c@c.lt", Name: "C"},
		Translator: &persistence.User{ID: "t1", Email: "t@t.lt", Name: "T"},
		Language:   "litauiska",
	}
}

func emails(intents []notification.Intent) []string {
	res := []string{}
	for _, in := range intents {
		if in.Channel == notification.ChannelEmail {
			res = append(res, in.Email)
		}
	}
	return res
}

func TestApply_SameStatusNoOp(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Pending), &Change{Target: status.Pending})
	assert.False(t, res.Changed)
}

func TestApply_UnknownStatusNoOp(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Pending)
	env.Job.Status = "olia"
	res := m.Apply(env, &Change{Target: status.Assigned})
	assert.False(t, res.Changed)
}

func TestApply_UnknownTargetNoOp(t *testing.T) {
	m := newMachine(t)
	for _, st := range []status.Status{status.Pending, status.Started, status.TimedOut} {
		res := m.Apply(newEnv(st), &Change{Target: 0, AdminComment: "olia"})
		assert.False(t, res.Changed, st.String())
	}
}

func TestApply_TerminalNoOp(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.WithdrawBefore24), &Change{Target: status.Pending})
	assert.False(t, res.Changed)
}

func TestApply_TimedOutToPending(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.TimedOut), &Change{Target: status.Pending})
	assert.True(t, res.Changed)
	assert.Equal(t, status.Pending, res.Status)
	assert.True(t, res.ResetExpiry)
	assert.True(t, res.ClearSentMarkers)
	assert.True(t, res.Rematch)
	require.Equal(t, 1, len(res.Intents))
	assert.Equal(t, notification.MsgJobReopened, res.Intents[0].MsgType)
	assert.Equal(t, []string{"c@c.lt"}, emails(res.Intents))
}

func TestApply_TimedOutWithReassign(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.TimedOut)
	env.NewTranslator = &persistence.User{ID: "t2", Email: "t2@t.lt", Name: "T2"}
	res := m.Apply(env, &Change{Target: status.Assigned, TranslatorChanged: true})
	assert.True(t, res.Changed)
	assert.Equal(t, status.Assigned, res.Status)
	assert.Equal(t, []string{"c@c.lt", "t2@t.lt"}, emails(res.Intents))
}

func TestApply_TimedOutRejectsOther(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.TimedOut), &Change{Target: status.Completed})
	assert.False(t, res.Changed)
}

func TestApply_CompletedToTimedOut(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Completed), &Change{Target: status.TimedOut, AdminComment: "olia"})
	assert.True(t, res.Changed)
	assert.Equal(t, status.TimedOut, res.Status)
	res = m.Apply(newEnv(status.Completed), &Change{Target: status.TimedOut})
	assert.False(t, res.Changed)
}

func TestApply_StartedToCompleted(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Started), &Change{Target: status.Completed,
		AdminComment: "olia", SessionTime: "01:15"})
	assert.True(t, res.Changed)
	assert.Equal(t, status.Completed, res.Status)
	assert.Equal(t, "1 tim 15 min", res.SessionTime)
	assert.True(t, res.CompleteAssignment)
	require.Equal(t, 2, len(res.Intents))
	assert.Equal(t, "faktura", res.Intents[0].Payload["for_text"])
	assert.Equal(t, "lön", res.Intents[1].Payload["for_text"])
	assert.Equal(t, []string{"c@c.lt", "t@t.lt"}, emails(res.Intents))
}

func TestApply_StartedNeedsComment(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Started), &Change{Target: status.Completed, SessionTime: "01:15"})
	assert.False(t, res.Changed)
}

func TestApply_PendingToAssigned(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Pending)
	env.Translator = nil
	env.NewTranslator = &persistence.User{ID: "t2", Email: "t2@t.lt", Name: "T2"}
	res := m.Apply(env, &Change{Target: status.Assigned, TranslatorChanged: true})
	assert.True(t, res.Changed)
	assert.Equal(t, status.Assigned, res.Status)
	assert.Equal(t, []string{"c@c.lt", "t2@t.lt"}, emails(res.Intents))
	pushes := 0
	for _, in := range res.Intents {
		if in.Channel == notification.ChannelPush {
			pushes++
			assert.Equal(t, notification.PushSessionStartRemind, in.MsgType)
		}
	}
	assert.Equal(t, 2, pushes)
}

func TestApply_PendingToAssignedNeedsReassign(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Pending), &Change{Target: status.Assigned})
	assert.False(t, res.Changed)
}

func TestApply_PendingToWithdraw(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Pending), &Change{Target: status.WithdrawBefore24})
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"c@c.lt"}, emails(res.Intents))
	assert.Equal(t, notification.MsgJobCancelledCustomer, res.Intents[0].MsgType)
}

func TestApply_PendingToTimedOutNeedsComment(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Pending), &Change{Target: status.TimedOut})
	assert.False(t, res.Changed)
	res = m.Apply(newEnv(status.Pending), &Change{Target: status.TimedOut, AdminComment: "olia"})
	assert.True(t, res.Changed)
}

func TestApply_WithdrawAfter24ToTimedOut(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.WithdrawAfter24), &Change{Target: status.TimedOut, AdminComment: "olia"})
	assert.True(t, res.Changed)
	res = m.Apply(newEnv(status.WithdrawAfter24), &Change{Target: status.TimedOut})
	assert.False(t, res.Changed)
}

func TestApply_AssignedToWithdraw(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Assigned), &Change{Target: status.WithdrawAfter24})
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"c@c.lt", "t@t.lt"}, emails(res.Intents))
}

func TestApply_AssignedToTimedOut(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Assigned), &Change{Target: status.TimedOut})
	assert.True(t, res.Changed)
	assert.Equal(t, 0, len(res.Intents))
}

func TestApply_AssignedRejectsCompleted(t *testing.T) {
	m := newMachine(t)
	res := m.Apply(newEnv(status.Assigned), &Change{Target: status.Completed})
	assert.False(t, res.Changed)
}

func TestApply_DuePassedDropsIntents(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Assigned)
	env.Job.Due = testNow.Add(-time.Hour)
	res := m.Apply(env, &Change{Target: status.WithdrawAfter24})
	assert.True(t, res.Changed)
	assert.Equal(t, 0, len(res.Intents))
}

func TestTranslatorChangedIntents(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Assigned)
	env.NewTranslator = &persistence.User{ID: "t2", Email: "t2@t.lt", Name: "T2"}
	res := m.TranslatorChangedIntents(env)
	assert.Equal(t, []string{"c@c.lt", "t2@t.lt", "t@t.lt"}, emails(res))
}

func TestTranslatorChangedIntents_DuePassed(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Assigned)
	env.Job.Due = testNow.Add(-time.Hour)
	assert.Equal(t, 0, len(m.TranslatorChangedIntents(env)))
}

func TestDueChangedIntents(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Assigned)
	res := m.DueChangedIntents(env, testNow.Add(24*time.Hour))
	require.Equal(t, 2, len(res))
	assert.Equal(t, notification.MsgChangedDate, res[0].MsgType)
	assert.Equal(t, "2023-03-11 12:00:00", res[0].Payload["old_time"])
}

func TestLangChangedIntents(t *testing.T) {
	m := newMachine(t)
	env := newEnv(status.Assigned)
	res := m.LangChangedIntents(env, "ryska")
	require.Equal(t, 2, len(res))
	assert.Equal(t, notification.MsgChangedLang, res[0].MsgType)
	assert.Equal(t, "ryska", res[0].Payload["old_lang"])
	assert.Equal(t, "litauiska", res[0].Payload["new_lang"])
}

func TestSessionTimeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "01:15", want: "1 tim 15 min"},
		{name: "zero hours", in: "00:30", want: "0 tim 30 min"},
		{name: "with seconds", in: "02:05:30", want: "2 tim 5 min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionTimeText(tt.in, testNow, testNow); got != tt.want {
				t.Errorf("SessionTimeText() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionTimeText_Fallback(t *testing.T) {
	due := testNow.Add(-90 * time.Minute)
	assert.Equal(t, "1 tim 30 min", SessionTimeText("", due, testNow))
	assert.Equal(t, "0 tim 0 min", SessionTimeText("olia", testNow.Add(time.Hour), testNow))
}
