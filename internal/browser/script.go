package browser

import (
	"fmt"
	"strings"

	"github.com/huddlenotify/huddlenotify/pkg/classifier"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

const bindingName = "huddlenotifyMutations"

// observerScript installs one MutationObserver on the document and forwards
// each batch through the page binding. Running it twice is harmless.
func observerScript(opts dom.ObserveOptions) string {
	filter := make([]string, len(opts.AttributeFilter))
	for i, name := range opts.AttributeFilter {
		filter[i] = fmt.Sprintf("%q", name)
	}

	return fmt.Sprintf(`(() => {
  if (window.__huddlenotifyObserver) return true;
  const send = (records) => {
    const batch = records.map((r) => ({
      type: r.type,
      attributeName: r.attributeName || "",
      target: r.target && r.target.className ? String(r.target.className) : "",
    }));
    try { window[%q](JSON.stringify(batch)); } catch (e) {}
  };
  const start = () => {
    const observer = new MutationObserver(send);
    observer.observe(document.documentElement, {
      subtree: %t,
      childList: %t,
      attributes: %t,
      attributeFilter: [%s],
    });
    window.__huddlenotifyObserver = observer;
  };
  if (document.documentElement) start();
  else document.addEventListener("DOMContentLoaded", start, { once: true });
  return true;
})()`, bindingName, opts.Subtree, opts.ChildList, opts.Attributes, strings.Join(filter, ", "))
}

// snapshotScript stamps the rendered fill of every mic icon shape onto the
// shape, then serializes the document.
func snapshotScript() string {
	return fmt.Sprintf(`(() => {
  document.querySelectorAll(%q).forEach((icon) => {
    icon.querySelectorAll("svg path, svg circle, svg rect").forEach((shape) => {
      shape.setAttribute(%q, getComputedStyle(shape).fill);
    });
  });
  return document.documentElement.outerHTML;
})()`, classifier.MicIconSelector, classifier.ComputedFillAttr)
}
