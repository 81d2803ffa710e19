package smart

import (
	"context"
	"testing"

	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// showingDetail 返回一个内容框架正在显示明细页的宿主
func showingDetail() *fakeHost {
	h := newFakeHost(abcBills())
	h.setContent(detailURL, detailHTML(abcBills()[0]))
	return h
}

func TestListingURLResolvesAgainstTop(t *testing.T) {
	s := newTestService(t, newFakeHost(nil), nil, nil)
	assert.Equal(t, listingAbs, s.listingURL(rootURL))
	assert.Equal(t, listingRel, s.listingURL(""))

	s.opts.ListingURL = "https://other.example/Smart.cfm"
	assert.Equal(t, "https://other.example/Smart.cfm", s.listingURL(rootURL))
}

func TestRestoreNavigatesDetailFrame(t *testing.T) {
	h := showingDetail()
	s := newTestService(t, h, nil, nil)

	l, err := s.Restore(context.Background(), contentPath)
	require.NoError(t, err)
	assert.True(t, l.Frame.Path.Equal(contentPath))
	assert.Equal(t, []string{"nav " + contentPath.String()}, h.navs)
}

func TestRestoreFallsBackToParentFrame(t *testing.T) {
	h := showingDetail()
	h.navBlocked[contentPath.String()] = true
	s := newTestService(t, h, nil, nil)

	l, err := s.Restore(context.Background(), contentPath)
	require.NoError(t, err)
	assert.True(t, l.Frame.Path.Equal(contentPath))
	assert.Equal(t, []string{"nav " + contentPath.String(), "nav " + mainPath.String()}, h.navs)
}

func TestRestoreClicksListingLink(t *testing.T) {
	h := showingDetail()
	h.navBlocked[contentPath.String()] = true
	h.navBlocked[mainPath.String()] = true
	s := newTestService(t, h, nil, nil)

	l, err := s.Restore(context.Background(), contentPath)
	require.NoError(t, err)
	assert.True(t, l.Frame.Path.Equal(contentPath))
	assert.Equal(t, "link "+menuPath.String(), h.navs[len(h.navs)-1])
}

func TestRestoreSeesLinkAddedDuringAncestorNavigation(t *testing.T) {
	h := newFakeHost(abcBills())
	h.menu = menuNoLink
	h.resetLayout()
	h.setContent(detailURL, detailHTML(abcBills()[0]))
	h.navBlocked[contentPath.String()] = true
	h.navBlocked[mainPath.String()] = true
	// main 框架的跳转虽被拒绝,菜单框架却因此刷新出了列表链接
	h.onNav = func(p types.FramePath) {
		if p.Equal(mainPath) {
			h.frameAt(menuPath).html = menuWithLink
		}
	}
	s := newTestService(t, h, nil, nil)

	l, err := s.Restore(context.Background(), contentPath)
	require.NoError(t, err)
	assert.True(t, l.Frame.Path.Equal(contentPath))
	assert.Equal(t, []string{
		"nav " + contentPath.String(),
		"nav " + mainPath.String(),
		"link " + menuPath.String(),
	}, h.navs)
}

func TestRestoreNavigatesTop(t *testing.T) {
	h := newFakeHost(abcBills())
	h.menu = menuNoLink
	h.resetLayout()
	h.setContent(detailURL, detailHTML(abcBills()[0]))
	h.navBlocked[contentPath.String()] = true
	h.navBlocked[mainPath.String()] = true
	s := newTestService(t, h, nil, nil)

	l, err := s.Restore(context.Background(), contentPath)
	require.NoError(t, err)
	assert.True(t, l.Frame.Path.Equal(contentPath))
	assert.Equal(t, "nav "+types.FramePath{}.String(), h.navs[len(h.navs)-1])
}

func TestRestoreFailure(t *testing.T) {
	h := showingDetail()
	h.linkBroken = true
	for _, p := range []types.FramePath{{}, mainPath, contentPath} {
		h.navBlocked[p.String()] = true
	}
	s := newTestService(t, h, nil, nil)

	_, err := s.Restore(context.Background(), contentPath)
	assert.ErrorIs(t, err, errs.ErrRestorationFailure)
}

func TestRestoreHonorsCancellation(t *testing.T) {
	h := showingDetail()
	h.linkBroken = true
	for _, p := range []types.FramePath{{}, mainPath, contentPath} {
		h.navBlocked[p.String()] = true
	}
	s := newTestService(t, h, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Restore(ctx, contentPath)
	assert.ErrorIs(t, err, context.Canceled)
}
