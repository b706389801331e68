package board_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/board"
	"github.com/miniintern/bizboard/internal/shared"
	"github.com/miniintern/bizboard/internal/testing/memstore"
	"github.com/miniintern/bizboard/internal/visibility"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc    *board.Service
	store  *memstore.Board
	audit  *auditSpy
	admin  *authz.Identity
	alice  *authz.Identity
	bob    *authz.Identity
	other  *authz.Identity
	orphan *authz.Identity
}

type auditSpy struct {
	actions []string
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func newFixture(t *testing.T, policy authz.Policy, pageSize int) *fixture {
	t.Helper()
	users := memstore.NewAccounts()
	add := func(name string, role authz.Role, business *int64) *authz.Identity {
		u, err := users.Create(context.Background(), accounts.NewUser{Username: name, Role: role, BusinessID: business})
		require.NoError(t, err)
		return u.Identity()
	}
	f := &fixture{
		admin:  add("root", authz.RoleAdmin, ptr(int64(1))),
		alice:  add("alice", authz.RoleMember, ptr(int64(1))),
		bob:    add("bob", authz.RoleMember, ptr(int64(1))),
		other:  add("olga", authz.RoleAdmin, ptr(int64(2))),
		orphan: add("nobody", authz.RoleMember, nil),
		audit:  &auditSpy{},
	}
	f.store = memstore.NewBoard(users)
	f.svc = board.NewService(f.store, authz.NewEngine(policy), pageSize, f.audit, nil).
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
	return f
}

func (f *fixture) post(t *testing.T, author *authz.Identity, title string, public bool) *board.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), author, board.PostInput{Title: title, Content: title + " body", IsPublic: ptr(public)})
	require.NoError(t, err)
	return p
}

func titles(posts []board.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestCreatePostInheritsCallerBusiness(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()

	p := f.post(t, f.alice, "hello", true)
	assert.Equal(t, int64(1), p.BusinessID)
	assert.Equal(t, f.alice.UserID, p.AuthorID)
	assert.Equal(t, "alice", p.Author)
	assert.Nil(t, p.DeletedAt)

	_, err := f.svc.CreatePost(ctx, nil, board.PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = f.svc.CreatePost(ctx, f.orphan, board.PostInput{Title: "x", Content: "y"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "business")

	_, err = f.svc.CreatePost(ctx, f.alice, board.PostInput{Title: "  "})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "content")
}

func TestListPostsScopedByRole(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	f.post(t, f.alice, "alice-public", true)
	f.post(t, f.alice, "alice-private", false)
	f.post(t, f.bob, "bob-private", false)
	gone := f.post(t, f.bob, "bob-deleted", true)
	f.post(t, f.other, "elsewhere", true)
	require.NoError(t, f.svc.DeletePost(ctx, f.bob, gone.ID))

	listing, err := f.svc.ListPosts(ctx, f.alice, board.PostFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice-public", "alice-private", "elsewhere"}, titles(listing.Items))

	listing, err = f.svc.ListPosts(ctx, f.admin, board.PostFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice-public", "alice-private", "bob-private", "bob-deleted"}, titles(listing.Items))

	mine, err := f.svc.MyPosts(ctx, f.bob, board.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-private"}, titles(mine.Items))

	_, err = f.svc.ListPosts(ctx, nil, board.PostFilter{})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestListPostsGlobalAdminScope(t *testing.T) {
	f := newFixture(t, authz.Policy{AdminReadsDeleted: true, AdminListScope: authz.ListScopeGlobal}, 20)
	f.post(t, f.alice, "one", false)
	f.post(t, f.other, "two", false)

	listing, err := f.svc.ListPosts(context.Background(), f.admin, board.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, listing.Items, 2)
}

func TestListPostsFiltersOrderingAndPaging(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 2)
	ctx := context.Background()
	f.post(t, f.alice, "banana", true)
	f.post(t, f.alice, "apple", false)
	f.post(t, f.alice, "cherry", true)

	listing, err := f.svc.ListPosts(ctx, f.alice, board.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cherry", "apple"}, titles(listing.Items))
	assert.Equal(t, 3, listing.Pagination.Total)
	assert.True(t, listing.Pagination.HasNext())

	listing, err = f.svc.ListPosts(ctx, f.alice, board.PostFilter{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"banana"}, titles(listing.Items))

	_, err = f.svc.ListPosts(ctx, f.alice, board.PostFilter{Page: 3})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	listing, err = f.svc.ListPosts(ctx, f.alice, board.PostFilter{Ordering: visibility.Ordering{Field: "title"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "banana"}, titles(listing.Items))

	listing, err = f.svc.ListPosts(ctx, f.alice, board.PostFilter{IsPublic: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple"}, titles(listing.Items))

	listing, err = f.svc.ListPosts(ctx, f.alice, board.PostFilter{Search: "ERR"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cherry"}, titles(listing.Items))
}

func TestEmptyListFirstPageIsValid(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	listing, err := f.svc.ListPosts(context.Background(), f.alice, board.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, listing.Items)
	assert.Equal(t, 0, listing.Pagination.Total)
}

func TestPrivatePostAccessMatrix(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	p := f.post(t, f.alice, "secret", false)

	_, err := f.svc.GetPost(ctx, f.bob, p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.UpdatePost(ctx, f.bob, p.ID, board.PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = f.svc.PatchPost(ctx, f.bob, p.ID, board.PostPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeletePost(ctx, f.bob, p.ID), shared.ErrForbidden)

	_, err = f.svc.GetPost(ctx, f.other, p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "admin of another business")
	assert.ErrorIs(t, f.svc.DeletePost(ctx, f.other, p.ID), shared.ErrForbidden)

	got, err := f.svc.GetPost(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Title)

	updated, err := f.svc.PatchPost(ctx, f.admin, p.ID, board.PostPatch{Content: ptr("moderated")})
	require.NoError(t, err)
	assert.Equal(t, "secret", updated.Title)
	assert.Equal(t, "moderated", updated.Content)
	assert.False(t, updated.IsPublic)

	require.NoError(t, f.svc.DeletePost(ctx, f.admin, p.ID))
	assert.Equal(t, []string{shared.AuditSoftDelete}, f.audit.actions)

	_, err = f.svc.GetPost(ctx, nil, p.ID)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestDeleteIsVisibleImmediatelyAndNotRepeatable(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	p := f.post(t, f.alice, "short-lived", true)

	before, err := f.svc.ListPosts(ctx, f.bob, board.PostFilter{})
	require.NoError(t, err)
	require.Len(t, before.Items, 1)

	require.NoError(t, f.svc.DeletePost(ctx, f.alice, p.ID))

	after, err := f.svc.ListPosts(ctx, f.bob, board.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, after.Items)

	stored, err := f.store.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeletedAt)
	stamp := *stored.DeletedAt

	err = f.svc.DeletePost(ctx, f.alice, p.ID)
	assert.ErrorIs(t, err, shared.ErrConflict)
	stored, err = f.store.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, stamp, *stored.DeletedAt)

	_, err = f.svc.GetPost(ctx, f.alice, p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "owner does not read deleted posts by default")
	_, err = f.svc.UpdatePost(ctx, f.alice, p.ID, board.PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	got, err := f.svc.GetPost(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestOwnerReadsDeletedPolicy(t *testing.T) {
	f := newFixture(t, authz.Policy{OwnerReadsDeleted: true, AdminListScope: authz.ListScopeBusiness}, 20)
	ctx := context.Background()
	p := f.post(t, f.alice, "draft", true)
	require.NoError(t, f.svc.DeletePost(ctx, f.alice, p.ID))

	_, err := f.svc.GetPost(ctx, f.alice, p.ID)
	require.NoError(t, err)
	mine, err := f.svc.MyPosts(ctx, f.alice, board.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)

	_, err = f.svc.GetPost(ctx, f.admin, p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "admin reads of deleted posts disabled")
}

func TestRestorePost(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	p := f.post(t, f.alice, "back", true)

	assert.ErrorIs(t, f.svc.RestorePost(ctx, p.ID), shared.ErrConflict)
	require.NoError(t, f.svc.DeletePost(ctx, f.alice, p.ID))
	require.NoError(t, f.svc.RestorePost(ctx, p.ID))
	assert.ErrorIs(t, f.svc.RestorePost(ctx, 999), shared.ErrNotFound)

	got, err := f.svc.GetPost(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, []string{shared.AuditSoftDelete, shared.AuditRestore}, f.audit.actions)
}

func TestCommentsFollowPostVisibility(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	open := f.post(t, f.alice, "open", true)
	closed := f.post(t, f.alice, "closed", false)

	c, err := f.svc.CreateComment(ctx, f.bob, board.CommentInput{PostID: open.ID, Content: "nice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.BusinessID)
	assert.True(t, c.IsPublic)
	assert.Equal(t, "bob", c.Author)

	_, err = f.svc.CreateComment(ctx, f.bob, board.CommentInput{PostID: closed.ID, Content: "peek"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.CreateComment(ctx, f.bob, board.CommentInput{PostID: 999, Content: "void"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, f.svc.DeletePost(ctx, f.alice, open.ID))
	_, err = f.svc.CreateComment(ctx, f.admin, board.CommentInput{PostID: open.ID, Content: "late"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	hidden, err := f.svc.CreateComment(ctx, f.alice, board.CommentInput{PostID: closed.ID, Content: "note", IsPublic: ptr(false)})
	require.NoError(t, err)

	listing, err := f.svc.ListComments(ctx, f.bob, board.CommentFilter{})
	require.NoError(t, err)
	assert.Empty(t, listing.Items, "comments on a deleted post are hidden with it")

	listing, err = f.svc.ListComments(ctx, f.admin, board.CommentFilter{PostID: ptr(closed.ID)})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, hidden.ID, listing.Items[0].ID)

	_, err = f.svc.GetComment(ctx, f.bob, hidden.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.PatchComment(ctx, f.bob, hidden.ID, board.CommentPatch{Content: ptr("edit")})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCommentsHiddenWithTheirPost(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	p := f.post(t, f.alice, "launch", true)
	c, err := f.svc.CreateComment(ctx, f.alice, board.CommentInput{PostID: p.ID, Content: "details inside"})
	require.NoError(t, err)

	_, err = f.svc.GetComment(ctx, f.bob, c.ID)
	require.NoError(t, err)
	listing, err := f.svc.ListComments(ctx, f.bob, board.CommentFilter{PostID: ptr(p.ID)})
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)

	_, err = f.svc.PatchPost(ctx, f.alice, p.ID, board.PostPatch{IsPublic: ptr(false)})
	require.NoError(t, err)
	_, err = f.svc.GetPost(ctx, f.bob, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.GetComment(ctx, f.bob, c.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	listing, err = f.svc.ListComments(ctx, f.bob, board.CommentFilter{PostID: ptr(p.ID)})
	require.NoError(t, err)
	assert.Empty(t, listing.Items)
	assert.Zero(t, listing.Pagination.Total)

	own, err := f.svc.GetComment(ctx, f.alice, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, own.ID)
	_, err = f.svc.GetComment(ctx, f.admin, c.ID)
	require.NoError(t, err)

	_, err = f.svc.PatchPost(ctx, f.alice, p.ID, board.PostPatch{IsPublic: ptr(true)})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeletePost(ctx, f.alice, p.ID))

	_, err = f.svc.GetComment(ctx, f.bob, c.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.GetComment(ctx, f.alice, c.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	listing, err = f.svc.ListComments(ctx, f.bob, board.CommentFilter{PostID: ptr(p.ID)})
	require.NoError(t, err)
	assert.Empty(t, listing.Items)
	mine, err := f.svc.MyComments(ctx, f.alice, board.CommentFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine.Items)

	moderated, err := f.svc.ListComments(ctx, f.admin, board.CommentFilter{PostID: ptr(p.ID)})
	require.NoError(t, err)
	assert.Len(t, moderated.Items, 1)
}

func TestCommentUpdateAndDelete(t *testing.T) {
	f := newFixture(t, authz.DefaultPolicy(), 20)
	ctx := context.Background()
	p := f.post(t, f.alice, "thread", true)
	other := f.post(t, f.alice, "elsewhere", true)
	c, err := f.svc.CreateComment(ctx, f.bob, board.CommentInput{PostID: p.ID, Content: "first"})
	require.NoError(t, err)

	_, err = f.svc.UpdateComment(ctx, f.bob, c.ID, board.CommentInput{PostID: other.ID, Content: "moved"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "post")

	updated, err := f.svc.UpdateComment(ctx, f.bob, c.ID, board.CommentInput{PostID: p.ID, Content: "second", IsPublic: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Content)
	assert.False(t, updated.IsPublic)

	_, err = f.svc.PatchComment(ctx, f.bob, c.ID, board.CommentPatch{Content: ptr("")})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")

	assert.ErrorIs(t, f.svc.DeleteComment(ctx, f.alice, c.ID), shared.ErrForbidden)
	require.NoError(t, f.svc.DeleteComment(ctx, f.admin, c.ID))
	assert.ErrorIs(t, f.svc.DeleteComment(ctx, f.bob, c.ID), shared.ErrConflict)

	mine, err := f.svc.MyComments(ctx, f.bob, board.CommentFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine.Items)

	require.NoError(t, f.svc.RestoreComment(ctx, c.ID))
	mine, err = f.svc.MyComments(ctx, f.bob, board.CommentFilter{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
}
