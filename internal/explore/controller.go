package explore

import (
	"context"
	"errors"
	"time"

	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/recipes"
)

// Request is one fetch issued by the Controller. Do may run on any
// goroutine; its Completion must be handed back to Controller.Complete on
// the goroutine that drives the controller.
type Request struct {
	Token  uint64
	Params recipes.PageRequest
	// Append marks a continuation whose items extend the current list.
	Append bool

	ctx     context.Context
	fetcher recipes.Fetcher
}

// Completion is the result of a Request.
type Completion struct {
	Token  uint64
	Params recipes.PageRequest
	Append bool
	Page   *recipes.Page
	Err    error
}

func (r *Request) Do() Completion {
	page, err := r.fetcher.FetchPage(r.ctx, r.Params)
	return Completion{Token: r.Token, Params: r.Params, Append: r.Append, Page: page, Err: err}
}

// Context is cancelled when the request is superseded or the controller is
// disposed.
func (r *Request) Context() context.Context { return r.ctx }

type Option func(*Controller)

// WithOffsetPaging continues listings with page numbers instead of cursors.
func WithOffsetPaging() Option {
	return func(c *Controller) { c.offsetPaging = true }
}

// WithFetchTimeout bounds every fetch. Zero means no limit.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.fetchTimeout = d }
}

// WithContext sets the parent of every request context.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.parent = ctx }
}

type dispatched struct {
	params recipes.PageRequest
	append bool
}

// Controller owns QueryState and ResultState. Each query change issues at
// most one Request; only the completion of the latest issued request is
// applied.
//
// A Controller is not safe for concurrent use. Drive it from one goroutine,
// typically the UI loop, and run Request.Do elsewhere.
type Controller struct {
	fetcher recipes.Fetcher

	query  QueryState
	result ResultState
	page   int // last loaded page, offset paging only
	// pageQuery is the query result.PageInfo was loaded for. It lags
	// query while a fresh fetch is pending or after one failed.
	pageQuery QueryState

	token    uint64
	inflight context.CancelFunc
	last     *dispatched

	viewer          Viewer
	viewerRequested bool

	observers []func(Location)

	offsetPaging bool
	fetchTimeout time.Duration
	parent       context.Context
	stop         context.CancelFunc
	disposed     bool

	log *debuglog.FieldLogger
}

func New(fetcher recipes.Fetcher, opts ...Option) *Controller {
	c := &Controller{
		fetcher: fetcher,
		query:   DefaultQuery(),
		page:    1,
		parent:  context.Background(),
		log:     debuglog.WithFields(map[string]interface{}{"component": "explore"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parent, c.stop = context.WithCancel(c.parent)
	return c
}

// Observe registers fn to receive the location after every query change.
func (c *Controller) Observe(fn func(Location)) {
	c.observers = append(c.observers, fn)
}

func (c *Controller) notify() {
	loc := c.Location()
	for _, fn := range c.observers {
		fn(loc)
	}
}

// Init adopts the location parsed from the address at startup and issues
// the first fetch. Observers see the canonical form of the address.
func (c *Controller) Init(loc Location) *Request {
	if c.disposed {
		return nil
	}
	c.query = Normalize(loc.Query)
	c.page = 1
	if c.offsetPaging && loc.Page > 1 {
		c.page = loc.Page
	}
	c.notify()
	return c.fresh(c.page)
}

// Submit is the search-submitted event.
func (c *Controller) Submit(term string) *Request {
	next := c.query
	next.Term = term
	return c.SetQuery(next)
}

// SetPageSize is the page-size-changed event. Unknown sizes fall back to
// the default.
func (c *Controller) SetPageSize(n int) *Request {
	next := c.query
	next.PageSize = n
	return c.SetQuery(next)
}

// SetSort is the sort-changed event. Unknown keys fall back to the default.
func (c *Controller) SetSort(k recipes.SortKey) *Request {
	next := c.query
	next.Sort = k
	return c.SetQuery(next)
}

// SetQuery replaces the whole query, for example from an edited address.
// An unchanged query issues nothing.
func (c *Controller) SetQuery(q QueryState) *Request {
	if c.disposed {
		return nil
	}
	q = Normalize(q)
	if q == c.query {
		return nil
	}
	c.query = q
	c.page = 1
	c.notify()
	return c.fresh(1)
}

// LoadMore continues the current listing. It issues nothing unless more
// items exist for the current query and no fetch or validation block is
// pending.
func (c *Controller) LoadMore() *Request {
	if c.disposed || !c.result.CanLoadMore() || c.pageQuery != c.query {
		return nil
	}
	params := c.query.pageRequest()
	if c.offsetPaging {
		params.Page = c.page + 1
	} else {
		if c.result.PageInfo.NextCursor == "" {
			return nil
		}
		params.Cursor = c.result.PageInfo.NextCursor
	}
	return c.dispatch(params, true)
}

// Retry replays the last issued fetch for the current query without
// touching the query itself.
func (c *Controller) Retry() *Request {
	if c.disposed || c.result.Loading() {
		return nil
	}
	if c.last == nil {
		return c.fresh(c.page)
	}
	return c.dispatch(c.last.params, c.last.append)
}

func (c *Controller) fresh(page int) *Request {
	if err := Validate(c.query.Term); err != nil {
		var ve *ValidationError
		errors.As(err, &ve)
		c.supersede()
		c.last = nil
		c.result.InitialLoading = false
		c.result.LoadingMore = false
		c.result.ErrorMessage = ""
		c.result.ValidationMessage = ve.Message
		c.log.Debugf("search term %q blocked: %s", c.query.Term, ve.Message)
		return nil
	}
	params := c.query.pageRequest()
	if c.offsetPaging && page > 1 {
		params.Page = page
	}
	return c.dispatch(params, false)
}

// supersede cancels the in-flight request and makes its completion stale.
func (c *Controller) supersede() {
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.token++
}

func (c *Controller) dispatch(params recipes.PageRequest, appendItems bool) *Request {
	c.supersede()

	var ctx context.Context
	if c.fetchTimeout > 0 {
		ctx, c.inflight = context.WithTimeout(c.parent, c.fetchTimeout)
	} else {
		ctx, c.inflight = context.WithCancel(c.parent)
	}
	c.last = &dispatched{params: params, append: appendItems}

	c.result.ErrorMessage = ""
	c.result.ValidationMessage = ""
	c.result.InitialLoading = !appendItems
	c.result.LoadingMore = appendItems

	c.log.Debugf("dispatch token=%d append=%t q=%q sort=%s limit=%d page=%d",
		c.token, appendItems, params.Query, params.Sort, params.Limit, params.Page)

	return &Request{
		Token:   c.token,
		Params:  params,
		Append:  appendItems,
		ctx:     ctx,
		fetcher: c.fetcher,
	}
}

// Complete applies done if it answers the latest issued request and
// reports whether it did. Superseded completions are dropped silently.
func (c *Controller) Complete(done Completion) bool {
	if c.disposed || c.inflight == nil || done.Token != c.token {
		c.log.Debugf("dropping stale completion token=%d latest=%d", done.Token, c.token)
		return false
	}
	c.inflight()
	c.inflight = nil
	c.result.InitialLoading = false
	c.result.LoadingMore = false

	if done.Err != nil {
		c.log.Warnf("fetch token=%d failed: %v", done.Token, done.Err)
		c.result.ErrorMessage = FetchErrorMessage
		return true
	}

	var items []recipes.Summary
	var info recipes.PageInfo
	if done.Page != nil {
		items, info = done.Page.Items, done.Page.PageInfo
	}

	if done.Append {
		merged := make([]recipes.Summary, 0, len(c.result.Items)+len(items))
		merged = append(merged, c.result.Items...)
		c.result.Items = append(merged, items...)
	} else {
		c.result.Items = append([]recipes.Summary{}, items...)
	}
	c.result.PageInfo = info
	c.result.ErrorMessage = ""
	c.pageQuery = c.query

	if c.offsetPaging {
		loaded := done.Params.Page
		if loaded < 1 {
			loaded = 1
		}
		if loaded != c.page {
			c.page = loaded
			c.notify()
		}
	}
	return true
}

// ResolveViewer starts the identity lookup. It returns nil after the first
// call: the viewer is resolved once per controller.
func (c *Controller) ResolveViewer(p IdentityProvider) *ViewerRequest {
	if c.disposed || c.viewerRequested || p == nil {
		return nil
	}
	c.viewerRequested = true
	return &ViewerRequest{provider: p, timeout: c.fetchTimeout, ctx: c.parent}
}

// SetViewer applies an identity lookup. Failures leave the viewer
// anonymous and are only logged.
func (c *Controller) SetViewer(res ViewerResolution) {
	if c.disposed {
		return
	}
	if res.Err != nil {
		c.log.Infof("viewer lookup failed, continuing anonymously: %v", res.Err)
		c.viewer = Viewer{}
		return
	}
	c.viewer = Viewer{UserID: res.UserID}
}

func (c *Controller) Viewer() Viewer { return c.viewer }

// Dispose cancels in-flight work and drops all state. Later completions
// are ignored and events issue nothing.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.stop()
	c.disposed = true
	c.observers = nil
	c.result = ResultState{}
}

func (c *Controller) Disposed() bool { return c.disposed }

func (c *Controller) Query() QueryState { return c.query }

// State returns a copy of the current results.
func (c *Controller) State() ResultState { return c.result.clone() }

// Location is the current query as an address location.
func (c *Controller) Location() Location {
	loc := Location{Query: c.query}
	if c.offsetPaging {
		loc.Page = c.page
	}
	return loc
}

// Context is cancelled when the controller is disposed. Work started on
// behalf of the explorer outside of Requests should derive from it.
func (c *Controller) Context() context.Context { return c.parent }

// Token is the latest issued request token.
func (c *Controller) Token() uint64 { return c.token }

// Cards returns the current items as cards annotated for the viewer.
func (c *Controller) Cards() []Card {
	return Annotate(ToCards(c.result.Items), c.viewer)
}
