package room

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// For any sequence of join/leave/vote actions the membership matches a
// simple set model, and the votes never reference an absent user.
func TestMembershipProperties(t *testing.T) {
	userIds := []string{"u1", "u2", "u3", "u4", "u5"}

	rapid.Check(t, func(t *rapid.T) {
		registry := newTestRegistry(clockwork.NewFakeClock())
		model := make(map[string]bool)

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			userId := rapid.SampledFrom(userIds).Draw(t, "user")
			switch rapid.IntRange(0, 2).Draw(t, "action") {
			case 0:
				s := registry.GetOrCreate("prop")
				_, err := s.Join(userId, userId, false, &recorder{})
				require.NoError(t, err)
				model[userId] = true
			case 1:
				if s, ok := registry.Get("prop"); ok {
					if err := s.Leave(userId); err == nil {
						delete(model, userId)
					} else {
						require.Equal(t, ErrNotAMember, err)
						require.False(t, model[userId])
					}
				}
			case 2:
				if s, ok := registry.Get("prop"); ok {
					_ = s.SubmitVote(userId, "5")
				}
			}

			if s, ok := registry.Get("prop"); ok {
				snapshot := s.Snapshot()
				members := make(map[string]bool, len(snapshot.Users))
				for _, user := range snapshot.Users {
					members[user.Id] = true
				}
				for _, vote := range snapshot.Votes {
					require.True(t, members[vote.UserId], "vote of %s without membership", vote.UserId)
				}
			}
		}

		s, ok := registry.Get("prop")
		if len(model) == 0 {
			require.False(t, ok, "empty room must be torn down")
			return
		}
		require.True(t, ok)
		snapshot := s.Snapshot()
		require.Len(t, snapshot.Users, len(model))
		for _, user := range snapshot.Users {
			require.True(t, model[user.Id])
		}
	})
}
