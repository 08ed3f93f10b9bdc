package recipients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

func seeded(t *testing.T) *Resolver {
	t.Helper()
	st := store.NewMemoryStore()
	for _, u := range []models.User{
		{ID: "lead", Email: "Lead@X.org", Role: models.RoleLeader},
		{ID: "admin", Email: "admin@x.org", Role: models.RoleAdmin},
		{ID: "creator", Email: "creator@x.org", Role: models.RoleMember},
		{ID: "ann", Email: "ann@x.org", FamilyID: "f1"},
		{ID: "sam", Email: "sam@x.org", FamilyID: "f1"},
		{ID: "kid", Email: "", FamilyID: "f1"},
		{ID: "bob", Email: "bob@x.org"},
	} {
		require.NoError(t, st.PutUser(context.Background(), u))
	}
	return NewResolver(st)
}

func TestSet(t *testing.T) {
	s := NewSet("a@x.org", " A@X.ORG ", "", "b@x.org")
	assert.Equal(t, []string{"a@x.org", "b@x.org"}, s.Slice())
	assert.True(t, s.Contains("B@x.org"))
	assert.Equal(t, 2, s.Len())

	s.Add("c@x.org", "A@x.org")
	assert.Equal(t, []string{"a@x.org", "b@x.org", "c@x.org"}, s.Slice())

	assert.Equal(t, []string{"b@x.org", "c@x.org"}, s.Without(NewSet("A@x.org")).Slice())

	var zero Set
	assert.Empty(t, zero.Slice())
	assert.False(t, zero.Contains("a@x.org"))
}

func TestLeaderEmails(t *testing.T) {
	got, err := seeded(t).LeaderEmails(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Lead@X.org", "admin@x.org"}, got.Slice())
}

func TestCCRecipients(t *testing.T) {
	r := seeded(t)
	ctx := context.Background()

	cc, err := r.CCRecipients(ctx, "creator")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Lead@X.org", "admin@x.org", "creator@x.org"}, cc.Slice())

	// a leader who created the event appears once
	cc, err = r.CCRecipients(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, cc.Len())

	cc, err = r.CCRecipients(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 2, cc.Len())
}

func TestCCExcludesTo(t *testing.T) {
	r := seeded(t)
	cc, err := r.CCRecipients(context.Background(), "creator")
	require.NoError(t, err)

	to := NewSet("lead@x.org")
	out := cc.Without(to)
	assert.False(t, out.Contains("lead@x.org"))
	assert.ElementsMatch(t, []string{"admin@x.org", "creator@x.org"}, out.Slice())
}

func TestFamilyMemberEmails(t *testing.T) {
	r := seeded(t)
	ctx := context.Background()

	fam, err := r.FamilyMemberEmails(ctx, "ann")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ann@x.org", "sam@x.org"}, fam.Slice())
	assert.Equal(t, "ann@x.org", fam.Slice()[0], "the assignee comes first")

	solo, err := r.FamilyMemberEmails(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@x.org"}, solo.Slice())

	none, err := r.FamilyMemberEmails(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())
}

func TestAttendeeEmails(t *testing.T) {
	r := seeded(t)
	got, err := r.AttendeeEmails(context.Background(), []string{"bob", "ghost", "kid", "ann", "bob"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob@x.org", "ann@x.org"}, got.Slice())

	empty, err := r.AttendeeEmails(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestEventAttendeeIDs(t *testing.T) {
	e := models.Event{Attendees: []string{"ann", "bob", "ann"}}
	tasks := []models.Task{{AssignedTo: "bob"}, {AssignedTo: ""}, {AssignedTo: "sam"}}
	assert.Equal(t, []string{"ann", "bob", "sam"}, EventAttendeeIDs(e, tasks))
	assert.Empty(t, EventAttendeeIDs(models.Event{}, nil))
}
