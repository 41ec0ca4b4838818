package xccdfpolicy

import (
	"context"
	"path"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sethvargo/go-retry"
)

// CPEDictionaryItem is one named platform entry in a CPE dictionary. A
// CheckHref/CheckSystem of "" means the platform is always applicable
// once its name matches; a non-empty pair means applicability requires
// evaluating a check (typically OVAL) against that content (§4.5).
type CPEDictionaryItem struct {
	Name        string
	CheckSystem string
	CheckHref   string
}

// CPEDictionary is a minimal, already-parsed view of a CPE dictionary:
// the core only needs enough to resolve platform applicability (§1: the
// CPE dictionary parser itself is out of scope).
type CPEDictionary struct {
	OriginPath string // file the dictionary came from; hrefs are joined against its directory (§4.5)
	Items      map[string]*CPEDictionaryItem
}

// CPELanguagePlatform is one "#id"-referenced platform in a CPE language
// model.
type CPELanguagePlatform struct {
	ID          string
	CheckSystem string
	CheckHref   string
}

// CPELanguageModel is a minimal, already-parsed view of a CPE language
// model (§1, §4.5).
type CPELanguageModel struct {
	OriginPath string
	Platforms  map[string]*CPELanguagePlatform
}

// ContentLoader loads the OVAL (or other) content at an absolute href and
// returns an opaque engine handle plus its destructor, used to populate
// the CPE/OVAL session cache (§3, §4.5). The core never interprets
// handle; it only stores it and calls destroy on teardown.
type ContentLoader func(ctx context.Context, href string) (handle any, destroy func(any), err error)

// SetContentLoader installs the loader C5 uses the first time a platform
// reference demands loading check content.
func (pm *PolicyModel) SetContentLoader(loader ContentLoader) {
	pm.contentLoader = loader
}

// platformResolution is the three-way outcome of attempting to resolve a
// single platform reference against a single CPE source (§4.5).
type platformResolution int

const (
	resUnresolved platformResolution = iota // source does not define this platform, or its content failed to load
	resTrue
	resFalse
)

// cpeSource is one of the four ordered sources a platform reference is
// tried against (§4.5).
type cpeSource struct {
	dict  *CPEDictionary
	lang  *CPELanguageModel
}

// applicabilitySources returns the CPE sources in the fixed order §4.5
// mandates: the embedded language model, each external language model,
// the embedded dictionary, each external dictionary. Absent embedded
// sources are skipped, so the slice length varies. The order is built in
// code, not taken from a registry, so callers cannot reorder it.
func applicabilitySources(pm *PolicyModel) []cpeSource {
	sources := make([]cpeSource, 0, 2+len(pm.externalCPELanguageModels)+len(pm.externalCPEDictionaries))
	if pm.Benchmark.EmbeddedCPELanguageModel != nil {
		sources = append(sources, cpeSource{lang: pm.Benchmark.EmbeddedCPELanguageModel})
	}
	for _, m := range pm.externalCPELanguageModels {
		sources = append(sources, cpeSource{lang: m})
	}
	if pm.Benchmark.EmbeddedCPEDictionary != nil {
		sources = append(sources, cpeSource{dict: pm.Benchmark.EmbeddedCPEDictionary})
	}
	for _, d := range pm.externalCPEDictionaries {
		sources = append(sources, cpeSource{dict: d})
	}
	return sources
}

// resolvePlatformRef resolves one platform reference against every
// source in order, stopping at the first applicable source (§4.5). It
// returns false, nil if every source returned resUnresolved/resFalse.
func resolvePlatformRef(ctx context.Context, pm *PolicyModel, policy *Policy, ref string) (bool, error) {
	isLangRef := len(ref) > 0 && ref[0] == '#'
	id := ref
	if isLangRef {
		id = ref[1:]
	}

	for _, src := range applicabilitySources(pm) {
		var res platformResolution
		var err error
		switch {
		case src.lang != nil && isLangRef:
			res, err = resolveLangPlatform(ctx, pm, policy, src.lang, id)
		case src.dict != nil && !isLangRef:
			res, err = resolveDictPlatform(ctx, pm, policy, src.dict, id)
		default:
			continue
		}
		if err != nil {
			// ContentUnloadable: not applicable from this source, keep trying.
			continue
		}
		switch res {
		case resTrue:
			return true, nil
		case resFalse, resUnresolved:
			continue
		}
	}
	return false, nil
}

func resolveDictPlatform(ctx context.Context, pm *PolicyModel, policy *Policy, d *CPEDictionary, name string) (platformResolution, error) {
	item, ok := d.Items[name]
	if !ok {
		return resUnresolved, nil
	}
	if item.CheckHref == "" {
		return resTrue, nil
	}
	return evalPlatformCheck(ctx, pm, policy, d.OriginPath, item.CheckHref, item.CheckSystem)
}

func resolveLangPlatform(ctx context.Context, pm *PolicyModel, policy *Policy, m *CPELanguageModel, id string) (platformResolution, error) {
	plat, ok := m.Platforms[id]
	if !ok {
		return resUnresolved, nil
	}
	if plat.CheckHref == "" {
		return resTrue, nil
	}
	// Language-model-origin references use the href as given (§4.5).
	return evalPlatformCheckAbsolute(ctx, pm, policy, plat.CheckHref, plat.CheckSystem)
}

// evalPlatformCheck resolves a dictionary-relative href against its
// dictionary's origin directory, then evaluates it.
func evalPlatformCheck(ctx context.Context, pm *PolicyModel, policy *Policy, originPath, href, system string) (platformResolution, error) {
	abs, err := joinHref(originPath, href)
	if err != nil {
		return resUnresolved, errContentUnloadable(href, err)
	}
	return evalPlatformCheckAbsolute(ctx, pm, policy, abs, system)
}

func evalPlatformCheckAbsolute(ctx context.Context, pm *PolicyModel, policy *Policy, href, system string) (platformResolution, error) {
	if _, err := pm.session(ctx, href); err != nil {
		return resUnresolved, err
	}
	for _, e := range pm.Registry.Lookup(system) {
		var imports []string
		res, err := e.eval(ctx, policy, "", "", href, nil, &imports)
		if err != nil {
			continue
		}
		if res != NotChecked {
			if res.passLike() {
				return resTrue, nil
			}
			return resFalse, nil
		}
	}
	return resUnresolved, nil
}

// joinHref resolves href against the directory containing originPath
// (§4.5). It uses a traversal-safe join (hrefs come from parsed external
// content and should never be able to escape the dictionary's own
// directory via "../" sequences).
func joinHref(originPath, href string) (string, error) {
	dir := path.Dir(originPath)
	if dir == "." && originPath == "" {
		return href, nil
	}
	return securejoin.SecureJoin(dir, href)
}

// platformCheckHref reports the (href, system) a raw platform reference
// resolves to, for FilesReferenced (§4.10) — a lightweight scan that does
// not load content or consult the session cache.
func platformCheckHref(pm *PolicyModel, ref string) (href, system string, ok bool) {
	isLangRef := len(ref) > 0 && ref[0] == '#'
	id := ref
	if isLangRef {
		id = ref[1:]
	}
	for _, src := range applicabilitySources(pm) {
		if isLangRef && src.lang != nil {
			if p, found := src.lang.Platforms[id]; found && p.CheckHref != "" {
				return p.CheckHref, p.CheckSystem, true
			}
		}
		if !isLangRef && src.dict != nil {
			if it, found := src.dict.Items[id]; found && it.CheckHref != "" {
				abs, err := joinHref(src.dict.OriginPath, it.CheckHref)
				if err != nil {
					continue
				}
				return abs, it.CheckSystem, true
			}
		}
	}
	return "", "", false
}

// session returns the cached engine session for href, loading it via the
// installed ContentLoader on first reference (§3, scenario 6: "The
// content loader must be invoked once; the second Rule reuses the cached
// session"). Transient load failures are retried a bounded number of
// times before surfacing ContentUnloadable.
func (pm *PolicyModel) session(ctx context.Context, href string) (cpeSession, error) {
	if s, ok := pm.sessions[href]; ok {
		return s, nil
	}
	if pm.contentLoader == nil {
		return cpeSession{}, errContentUnloadable(href, nil)
	}

	var handle any
	var destroy func(any)
	backoff := retry.WithMaxRetries(2, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		h, d, err := pm.contentLoader(ctx, href)
		if err != nil {
			return retry.RetryableError(err)
		}
		handle, destroy = h, d
		return nil
	})
	if err != nil {
		return cpeSession{}, errContentUnloadable(href, err)
	}

	s := cpeSession{handle: handle, destroy: destroy}
	pm.sessions[href] = s
	return s, nil
}

// applicable implements §4.5's recursive definition: an Item is
// applicable iff its parent is applicable (the Benchmark root is always
// applicable) and, if it carries platform references, at least one
// resolves true. cache memoizes per-item results for the duration of one
// Policy.Evaluate call (the session cache above is the thing the spec
// requires to persist across Evaluate calls and Policies; the boolean
// result itself is cheap to recompute and not required to survive past
// one evaluation).
func applicable(ctx context.Context, pm *PolicyModel, policy *Policy, it *Item, cache map[string]bool) (bool, error) {
	if it.Parent == nil {
		return true, nil // Benchmark root
	}
	key := itemCacheKey(it)
	if v, ok := cache[key]; ok && key != "" {
		return v, nil
	}

	parentOK, err := applicable(ctx, pm, policy, it.Parent, cache)
	if err != nil {
		return false, err
	}
	if !parentOK {
		cache[key] = false
		return false, nil
	}

	if !it.hasPlatforms() {
		cache[key] = true
		return true, nil
	}

	for _, ref := range it.Platforms {
		ok, err := resolvePlatformRef(ctx, pm, policy, ref)
		if err != nil {
			return false, err
		}
		if ok {
			cache[key] = true
			return true, nil
		}
	}
	cache[key] = false
	return false, nil
}

// itemCacheKey builds a memoization key from the item id (ids are unique
// per §3). Items without an id get "", which applicable never reads back
// from the cache, so unid'd items (rare) simply never hit the cache.
func itemCacheKey(it *Item) string {
	return it.ID
}
