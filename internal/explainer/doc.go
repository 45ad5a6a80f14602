// Package explainer is the entry point for hosting explainer plugins.
//
// An Explainer combines a descriptor, which names known plugins and how to
// resolve them, with plugin discovery over a set of search directories.
// ImportFrom loads a plugin through a shared plugin.Loader and caches the
// resulting spec:
//
//	ex, err := explainer.New(explainer.WithDescriptorName("default"))
//	if err != nil {
//		return err
//	}
//	defer ex.Close()
//
//	spec, err := ex.ImportFrom(ctx, "./plugins/shap")
//	if err != nil {
//		return err
//	}
//	result, err := spec.Invoke(ctx, "run", []string{"feature", "importance"})
//
// List never executes plugin code, so it is safe to call from shell
// completion.
package explainer
