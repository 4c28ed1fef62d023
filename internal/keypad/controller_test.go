package keypad

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/amplipi-keypad-go/internal/amplipi"
)

var ctx = context.Background()

func TestController_StartupDrawsEverythingAndPublishes(t *testing.T) {
	h := newHarness(singleZone())

	require.NoError(t, h.ctrl.Step(ctx))

	assert.True(t, h.api.called("GET zones/0"))
	assert.True(t, h.api.called("GET sources/0"))
	assert.Contains(t, h.renderer.draws, "main")
	assert.Contains(t, h.renderer.draws, "mute")
	assert.Contains(t, h.renderer.draws, "volume")
	assert.Equal(t, 1, h.renderer.presents)
	assert.True(t, h.ctrl.state.Dirty.Empty())

	require.Len(t, h.publisher.snaps, 1)
	assert.Equal(t, uint64(1), h.publisher.snaps[0].Sequence)
	assert.Equal(t, h.publisher.snaps[0], h.ctrl.Snapshot())
	assert.Equal(t, LocalInputName, h.ctrl.Snapshot().Metadata.SourceName)
}

func TestController_TouchOutsideRegionsIsNoOp(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	before := *h.ctrl.state

	for _, p := range [][2]int{{100, 100}, {38, 300}, {220, 300}, {100, 265}, {-5, -5}, {500, 500}} {
		assert.False(t, h.ctrl.Dispatch(ctx, p[0], p[1]), "point %v", p)
	}

	assert.Empty(t, h.api.calls)
	assert.True(t, h.ctrl.state.Dirty.Empty())
	assert.Equal(t, before.Zones, h.ctrl.state.Zones)
	assert.Equal(t, ScreenMetadata, h.ctrl.state.Screen)
	assert.False(t, h.ctrl.Flush())
	assert.Empty(t, h.renderer.draws)
}

func TestController_FlushDrawsOnlyDirtyElements(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()

	require.False(t, h.ctrl.Flush())
	require.Zero(t, h.renderer.presents)

	h.ctrl.state.Dirty.Mark(ElementMetadata)
	require.True(t, h.ctrl.Flush())
	assert.Equal(t, []string{"metadata"}, h.renderer.draws)
	assert.False(t, h.ctrl.state.Dirty.Has(ElementMetadata))
	assert.Equal(t, 1, h.renderer.presents)

	h.renderer.reset()
	require.False(t, h.ctrl.Flush())
	assert.Empty(t, h.renderer.draws)
}

func TestController_FlushKeepsFlagsOfHiddenElements(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.ctrl.Flush()

	h.ctrl.state.Dirty.Mark(ElementMetadata)
	h.renderer.reset()
	assert.False(t, h.ctrl.Flush())
	assert.True(t, h.ctrl.state.Dirty.Has(ElementMetadata))
}

func TestController_MuteToggle(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()

	require.True(t, h.ctrl.Dispatch(ctx, 10, 290))

	require.Equal(t, []string{"PATCH zones/0"}, h.api.calls)
	require.Len(t, h.api.zoneUpdates, 1)
	require.NotNil(t, h.api.zoneUpdates[0].Mute)
	assert.True(t, *h.api.zoneUpdates[0].Mute)
	assert.Nil(t, h.api.zoneUpdates[0].Vol)
	assert.True(t, h.ctrl.state.Zones[0].Muted)
	assert.True(t, h.ctrl.state.Dirty.Has(ElementMute1))
	assert.True(t, h.ctrl.state.Dirty.Has(ElementVolume1))

	h.ctrl.Dispatch(ctx, 10, 290)
	assert.False(t, *h.api.zoneUpdates[1].Mute)
}

func TestController_FailedWriteKeepsLocalStateAndWarns(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.api.writeErr = errOffline

	h.ctrl.Dispatch(ctx, 10, 290)

	assert.True(t, h.ctrl.state.Zones[0].Muted)
	assert.True(t, h.ctrl.state.Warning)
	assert.Contains(t, h.auditor.types(), EventAPIWriteFailed)
	require.Equal(t, 1, len(h.api.zoneUpdates), "no synchronous retry")

	h.ctrl.Flush()
	assert.Equal(t, WarningText, h.renderer.lastWarn)

	h.api.writeErr = nil
	h.ctrl.Dispatch(ctx, 10, 290)
	assert.False(t, h.ctrl.state.Warning)
}

func TestController_VolumeTouch(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()

	require.True(t, h.ctrl.Dispatch(ctx, 120, 300))
	require.NotNil(t, h.api.zoneUpdates[0].Vol)
	assert.Equal(t, -39, *h.api.zoneUpdates[0].Vol)
	assert.InDelta(t, 50.0, h.ctrl.state.Zones[0].VolumePercent, 1e-9)
	assert.True(t, h.ctrl.state.Dirty.Has(ElementVolume1))
	assert.False(t, h.ctrl.state.Dirty.Has(ElementMute1))

	h.ctrl.Dispatch(ctx, 190, 300)
	assert.Equal(t, 0, *h.api.zoneUpdates[1].Vol)
	assert.Equal(t, 100.0, h.ctrl.state.Zones[0].VolumePercent)
}

func TestController_DualZoneBandsTargetTheirZones(t *testing.T) {
	h := newHarness(dualZone())
	h.settle()

	h.ctrl.Dispatch(ctx, 10, 250)
	h.ctrl.Dispatch(ctx, 10, 290)
	h.ctrl.Dispatch(ctx, 100, 300)

	assert.Equal(t, []string{"PATCH zones/0", "PATCH zones/1", "PATCH zones/1"}, h.api.calls)
	assert.True(t, h.ctrl.state.Dirty.Has(ElementVolume2))
}

func TestController_SingleZoneLowerBandTargetsZoneOne(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	require.False(t, h.ctrl.state.Layout.Dual())

	h.ctrl.Dispatch(ctx, 10, 290)
	h.ctrl.Dispatch(ctx, 100, 300)

	assert.Equal(t, []string{"PATCH zones/0", "PATCH zones/0"}, h.api.calls)
}

func TestController_OpenSourceSelect(t *testing.T) {
	h := newHarness(singleZone())
	h.api.addStreams(3)
	h.settle()

	require.True(t, h.ctrl.Dispatch(ctx, 100, 10))

	s := h.ctrl.state
	assert.Equal(t, ScreenSourceSelect, s.Screen)
	assert.False(t, s.RefreshEnabled)
	assert.Equal(t, 0, s.Offset)
	assert.Equal(t, []string{"GET /"}, h.api.calls)
	require.Len(t, s.Streams, 4)
	assert.Equal(t, StreamItem{ID: amplipi.LocalInput, DisplayName: LocalInputName}, s.Streams[0])
	assert.Equal(t, StreamItem{ID: "1000", DisplayName: "Stream A"}, s.Streams[1])

	h.ctrl.Flush()
	assert.Contains(t, h.renderer.draws, "source_list")
	assert.Equal(t, "Select Source", h.renderer.lastBar)
	assert.Len(t, h.renderer.lastList, 4)
}

func TestController_RefreshHaltedOnSourceSelect(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.api.reset()

	h.clock.Advance(time.Minute)
	require.NoError(t, h.ctrl.Step(ctx))
	assert.Empty(t, h.api.calls)
}

func TestController_Pagination(t *testing.T) {
	h := newHarness(singleZone())
	h.api.addStreams(3)
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)

	h.ctrl.Dispatch(ctx, 10, 300)
	assert.Equal(t, 0, h.ctrl.state.Offset)

	h.ctrl.Dispatch(ctx, 230, 300)
	assert.Equal(t, 6, h.ctrl.state.Offset)
	h.ctrl.Dispatch(ctx, 230, 300)
	assert.Equal(t, 12, h.ctrl.state.Offset)

	h.api.reset()
	audited := len(h.auditor.events)
	assert.False(t, h.ctrl.Dispatch(ctx, 100, 40), "empty page row")
	assert.Empty(t, h.api.calls)
	assert.Len(t, h.auditor.events, audited, "a tap that does nothing is not audited")

	h.ctrl.Dispatch(ctx, 10, 300)
	h.ctrl.Dispatch(ctx, 10, 300)
	h.ctrl.Dispatch(ctx, 10, 300)
	assert.Equal(t, 0, h.ctrl.state.Offset)
}

func TestController_SelectStream(t *testing.T) {
	h := newHarness(singleZone())
	h.api.addStreams(2)
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.api.reset()

	require.True(t, h.ctrl.Dispatch(ctx, 100, ListTop+RowHeight+5))

	require.NotEmpty(t, h.auditor.events)
	touch := h.auditor.events[len(h.auditor.events)-1]
	assert.Equal(t, EventTouchAction, touch.Type)
	assert.Equal(t, ScreenSourceSelect, touch.Screen)
	assert.Equal(t, []string{"PATCH sources/0"}, h.api.calls)
	assert.Equal(t, []string{"stream=1000"}, h.api.inputUpdates)
	s := h.ctrl.state
	assert.Equal(t, ScreenMetadata, s.Screen)
	assert.True(t, s.RefreshEnabled)
	assert.Equal(t, Metadata{}, s.Metadata)
	assert.Equal(t, h.clock.Now(), s.NextRefresh)
	for _, e := range []Element{ElementMainArea, ElementSourceBar, ElementMetadata, ElementAlbumArt, ElementMute1, ElementVolume1} {
		assert.True(t, s.Dirty.Has(e), e.String())
	}
}

func TestController_SelectLocalInput(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)

	h.ctrl.Dispatch(ctx, 100, ListTop+5)
	assert.Equal(t, []string{"local"}, h.api.inputUpdates)
}

func TestController_CancelSourceSelect(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.api.reset()

	require.True(t, h.ctrl.Dispatch(ctx, 70, 300))
	assert.Empty(t, h.api.calls)
	assert.Equal(t, ScreenMetadata, h.ctrl.state.Screen)
	assert.True(t, h.ctrl.state.RefreshEnabled)
	assert.Equal(t, LocalInputName, h.ctrl.state.Metadata.SourceName)
}

func TestController_LocalInputMakesNoStreamCall(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Name: "Input 1", Input: "local"}

	h.ctrl.Refresh(ctx)

	for _, c := range h.api.calls {
		assert.NotContains(t, c, "streams/")
	}
	assert.Equal(t, LocalInputName, h.ctrl.state.Metadata.SourceName)
	assert.Empty(t, h.ctrl.state.Metadata.Artist)
}

func TestController_EmptyInputMakesNoStreamCall(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Name: "Input 1", Input: ""}

	h.ctrl.Refresh(ctx)

	for _, c := range h.api.calls {
		assert.NotContains(t, c, "streams/")
	}
	assert.Equal(t, Metadata{SourceName: "Input 1"}, h.ctrl.state.Metadata)
}

func TestController_CompoundInputResolvesStreamID(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Input: "something=42"}
	h.api.streams["42"] = amplipi.Stream{
		ID: 42, Name: "Groove Salad", Status: "playing",
		Info: amplipi.StreamInfo{Artist: "A", Song: "S", Album: "Al"},
	}

	h.ctrl.Refresh(ctx)

	assert.True(t, h.api.called("GET streams/42"))
	md := h.ctrl.state.Metadata
	assert.Equal(t, "Groove Salad", md.SourceName)
	assert.Equal(t, "A", md.Artist)
	assert.Equal(t, "S", md.Song)
	assert.Equal(t, "Al", md.Album)
	assert.Equal(t, "42", md.StreamID)
}

func TestController_FailedZoneFetchKeepsCachesAndWarning(t *testing.T) {
	h := newHarness(singleZone())
	h.api.zones[0] = amplipi.Zone{ID: 0, Mute: true, Vol: -40}
	h.settle()
	cached := h.ctrl.state.Zones[0]
	require.True(t, cached.Muted)

	h.api.zoneErr = errOffline
	h.api.sourceErr = errOffline
	h.api.zones[0] = amplipi.Zone{ID: 0, Mute: false, Vol: 0}
	h.ctrl.Refresh(ctx)
	require.True(t, h.ctrl.state.Warning)
	h.ctrl.Flush()

	h.ctrl.Refresh(ctx)
	assert.Equal(t, cached, h.ctrl.state.Zones[0])
	assert.True(t, h.ctrl.state.Warning)
	assert.False(t, h.ctrl.state.Dirty.Has(ElementMute1))
	assert.False(t, h.ctrl.state.Dirty.Has(ElementVolume1))

	h.api.zoneErr = nil
	h.api.sourceErr = nil
	h.ctrl.Refresh(ctx)
	assert.False(t, h.ctrl.state.Warning)
	assert.False(t, h.ctrl.state.Zones[0].Muted)
	assert.Equal(t, 100.0, h.ctrl.state.Zones[0].VolumePercent)
}

func TestController_FetchFailureAuditedOncePerOutage(t *testing.T) {
	h := newHarness(singleZone())
	h.api.zoneErr = errOffline
	h.api.sourceErr = errOffline

	h.ctrl.Refresh(ctx)
	h.ctrl.Refresh(ctx)

	count := 0
	for _, typ := range h.auditor.types() {
		if typ == EventAPIFetchFailed {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestController_OneFailingZoneHoldsWarning(t *testing.T) {
	h := newHarness(DeviceConfig{Zone1: 0, Zone2: 3, Source: 0})

	for i := 0; i < 3; i++ {
		h.ctrl.Refresh(ctx)
		require.True(t, h.ctrl.state.Warning, "refresh %d", i)
	}
	assert.True(t, h.ctrl.state.Zones[0].Known)
	assert.False(t, h.ctrl.state.Zones[1].Known)
	assert.Equal(t, LocalInputName, h.ctrl.state.Metadata.SourceName)

	var failures []AuditEvent
	for _, e := range h.auditor.events {
		if e.Type == EventAPIFetchFailed {
			failures = append(failures, e)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, zonePath(3), failures[0].Message)

	h.ctrl.Flush()
	assert.Equal(t, WarningText, h.renderer.lastWarn)

	h.api.zones[3] = amplipi.Zone{ID: 3, Vol: -79}
	h.ctrl.Refresh(ctx)
	assert.False(t, h.ctrl.state.Warning)
	assert.True(t, h.ctrl.state.Zones[1].Known)
}

func TestController_MalformedResponseDoesNotWarn(t *testing.T) {
	h := newHarness(singleZone())
	malformed := &amplipi.DecodeError{Path: "zones/0", Err: errors.New("unexpected EOF")}
	h.api.zoneErr = malformed
	h.api.sourceErr = malformed

	h.ctrl.Refresh(ctx)

	assert.False(t, h.ctrl.state.Warning)
	assert.False(t, h.ctrl.state.Zones[0].Known)
}

func TestController_MetadataChangeMarksOnlyMetadata(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Input: "stream=1000"}
	h.api.streams["1000"] = amplipi.Stream{
		ID: 1000, Name: "Radio", Status: "playing",
		Info: amplipi.StreamInfo{Artist: "A", Song: "S", ImgURL: "art1"},
	}
	h.settle()
	require.True(t, h.ctrl.state.Dirty.Empty())

	stream := h.api.streams["1000"]
	stream.Info.Song = "S2"
	h.api.streams["1000"] = stream
	h.ctrl.Refresh(ctx)

	assert.Equal(t, DirtySet(ElementMetadata), h.ctrl.state.Dirty)
	assert.False(t, h.api.called("GET streams/image/1000"))

	h.ctrl.Flush()
	assert.Equal(t, []string{"metadata"}, h.renderer.draws)
	assert.Equal(t, "S2", h.renderer.lastMeta.Song)
}

func TestController_AlbumArtDownloadedOnChange(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Input: "stream=1000"}
	h.api.streams["1000"] = amplipi.Stream{ID: 1000, Name: "Radio", Info: amplipi.StreamInfo{ImgURL: "art1"}}
	h.api.images["1000"] = image.NewRGBA(image.Rect(0, 0, 120, 120))

	h.ctrl.Refresh(ctx)

	assert.True(t, h.api.called("GET streams/image/1000"))
	assert.NotNil(t, h.ctrl.state.AlbumArt)
	assert.True(t, h.ctrl.state.Dirty.Has(ElementAlbumArt))
}

func TestController_AlbumArtDecodeFailureLeavesArtBlank(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Input: "stream=1000"}
	h.api.streams["1000"] = amplipi.Stream{ID: 1000, Name: "Radio", Info: amplipi.StreamInfo{ImgURL: "art1"}}
	h.api.imageErr = &amplipi.DecodeError{Path: "streams/image/1000", Err: errors.New("not a bmp")}

	h.ctrl.Refresh(ctx)

	assert.Nil(t, h.ctrl.state.AlbumArt)
	assert.False(t, h.ctrl.state.Warning)
	assert.Equal(t, "art1", h.ctrl.state.Metadata.AlbumArtRef)
}

func TestController_AlbumArtTransportFailureRetries(t *testing.T) {
	h := newHarness(singleZone())
	h.api.sources[0] = amplipi.Source{ID: 0, Input: "stream=1000"}
	h.api.streams["1000"] = amplipi.Stream{ID: 1000, Name: "Radio", Info: amplipi.StreamInfo{ImgURL: "art1"}}
	h.api.imageErr = errOffline

	h.ctrl.Refresh(ctx)
	assert.True(t, h.ctrl.state.Warning)
	assert.Empty(t, h.ctrl.state.Metadata.AlbumArtRef)

	h.api.imageErr = nil
	h.api.images["1000"] = image.NewRGBA(image.Rect(0, 0, 10, 10))
	h.api.reset()
	h.ctrl.Refresh(ctx)
	assert.True(t, h.api.called("GET streams/image/1000"))
	assert.NotNil(t, h.ctrl.state.AlbumArt)
}

func TestController_SettingsSteppersClamp(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	require.True(t, h.ctrl.Dispatch(ctx, 150, 300))
	require.Equal(t, ScreenSettings, h.ctrl.state.Screen)
	require.Equal(t, singleZone(), h.ctrl.state.Pending)

	h.ctrl.Dispatch(ctx, 140, 50)
	h.ctrl.Dispatch(ctx, 140, 90)
	for i := 0; i < 6; i++ {
		h.ctrl.Dispatch(ctx, 200, 130)
	}
	assert.Equal(t, DeviceConfig{Zone1: 0, Zone2: -1, Source: 3}, h.ctrl.state.Pending)

	for i := 0; i < 6; i++ {
		h.ctrl.Dispatch(ctx, 200, 90)
	}
	assert.Equal(t, 3, h.ctrl.state.Pending.Zone2)
	assert.True(t, h.ctrl.state.Dirty.Has(ElementSettings))
	assert.Equal(t, singleZone(), h.ctrl.state.Device, "device untouched until save")
}

func TestController_SettingsSaveAppliesDualLayout(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.ctrl.Dispatch(ctx, 150, 300)
	h.ctrl.Dispatch(ctx, 200, 90)
	h.ctrl.Dispatch(ctx, 200, 90)
	h.api.reset()

	require.True(t, h.ctrl.Dispatch(ctx, 60, 300))

	want := DeviceConfig{Zone1: 0, Zone2: 1, Source: 0}
	assert.Equal(t, []DeviceConfig{want}, h.store.saved)
	s := h.ctrl.state
	assert.Equal(t, want, s.Device)
	assert.Equal(t, ScreenMetadata, s.Screen)
	assert.True(t, s.Layout.Dual())
	require.Len(t, s.Zones, 2)
	assert.Equal(t, 1, s.Zones[1].ID)
	assert.Contains(t, h.auditor.types(), EventSettingsSaved)

	require.NoError(t, h.ctrl.Step(ctx))
	assert.True(t, h.api.called("GET zones/1"))
}

func TestController_SettingsCancelDiscardsPending(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.ctrl.Dispatch(ctx, 150, 300)
	h.ctrl.Dispatch(ctx, 200, 50)

	require.True(t, h.ctrl.Dispatch(ctx, 180, 300))

	assert.Empty(t, h.store.saved)
	assert.Equal(t, singleZone(), h.ctrl.state.Device)
	assert.Equal(t, singleZone(), h.ctrl.state.Pending)
	assert.Equal(t, ScreenMetadata, h.ctrl.state.Screen)
}

func TestController_ResetAndRecalibrateRestart(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.ctrl.Dispatch(ctx, 100, 10)
	h.ctrl.Dispatch(ctx, 150, 300)

	h.ctrl.Dispatch(ctx, 100, 180)
	assert.Equal(t, 1, h.store.resets)
	assert.Equal(t, 1, h.restarter.restarts)

	h.ctrl.Dispatch(ctx, 100, 220)
	assert.Equal(t, 1, h.store.calibClears)
	assert.Equal(t, 2, h.restarter.restarts)
	assert.Contains(t, h.auditor.types(), EventDeviceReset)
}

func TestController_StepDebouncesAfterTouch(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	h.touch.points = [][2]int{{10, 290}}

	require.NoError(t, h.ctrl.Step(ctx))

	assert.True(t, h.api.called("PATCH zones/0"))
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, h.clock.slept)
}

func TestController_StepRefreshSchedule(t *testing.T) {
	h := newHarness(singleZone())
	start := h.clock.Now()
	h.settle()
	require.Equal(t, start.Add(5*time.Second), h.ctrl.state.NextRefresh)

	h.clock.Advance(4 * time.Second)
	require.NoError(t, h.ctrl.Step(ctx))
	assert.Empty(t, h.api.calls)

	h.clock.Advance(time.Second)
	require.NoError(t, h.ctrl.Step(ctx))
	assert.True(t, h.api.called("GET zones/0"))
	assert.Equal(t, start.Add(10*time.Second), h.ctrl.state.NextRefresh)
}

func TestNextRefresh(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	interval := 5 * time.Second

	assert.Equal(t, base.Add(interval), nextRefresh(time.Time{}, base, interval))
	assert.Equal(t, base.Add(interval), nextRefresh(base, base.Add(300*time.Millisecond), interval))
	assert.Equal(t, base.Add(20*time.Second), nextRefresh(base, base.Add(15*time.Second), interval))
}

func TestController_InjectedTouchDispatched(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()

	require.NoError(t, h.ctrl.Inject(10, 290))
	require.NoError(t, h.ctrl.Step(ctx))

	assert.True(t, h.ctrl.state.Zones[0].Muted)
}

func TestController_InboxFull(t *testing.T) {
	h := newHarness(singleZone())
	for i := 0; i < 16; i++ {
		require.NoError(t, h.ctrl.Inject(0, 0))
	}
	assert.ErrorIs(t, h.ctrl.Inject(0, 0), ErrInboxFull)
}

func TestController_NoticeShownAndExpires(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()

	require.NoError(t, h.ctrl.Notify("Pair code 123456", time.Minute))
	require.NoError(t, h.ctrl.Step(ctx))
	assert.Equal(t, "Pair code 123456", h.renderer.lastWarn)
	assert.Equal(t, "Pair code 123456", h.ctrl.Snapshot().Notice)

	h.clock.Advance(61 * time.Second)
	require.NoError(t, h.ctrl.Step(ctx))
	assert.Equal(t, "", h.renderer.lastWarn)
	assert.Empty(t, h.ctrl.state.Notice)
}

func TestController_WarningWinsOverNotice(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()
	require.NoError(t, h.ctrl.Notify("hello", 0))
	h.api.zoneErr = errOffline
	h.clock.Advance(5 * time.Second)

	require.NoError(t, h.ctrl.Step(ctx))
	assert.Equal(t, WarningText, h.renderer.lastWarn)
}

func TestController_ApplyDeviceThroughInbox(t *testing.T) {
	h := newHarness(singleZone())
	h.settle()

	require.NoError(t, h.ctrl.ApplyDevice(dualZone()))
	require.NoError(t, h.ctrl.Step(ctx))

	assert.True(t, h.ctrl.state.Layout.Dual())
	assert.True(t, h.api.called("GET zones/1"))
	assert.Contains(t, h.renderer.draws, "volume")
}

func TestController_StepStopsOnCancelledContext(t *testing.T) {
	h := newHarness(singleZone())
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	assert.ErrorIs(t, h.ctrl.Step(cancelled), context.Canceled)
	assert.Empty(t, h.api.calls)
}
