package topology

import (
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

var created = metav1.NewTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

func meta(name string, labels map[string]string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: "staging", Labels: labels, CreationTimestamp: created}
}

func service(name string, selector map[string]string, ports ...corev1.ServicePort) corev1.Service {
	return corev1.Service{
		ObjectMeta: meta(name, nil),
		Spec:       corev1.ServiceSpec{Selector: selector, Ports: ports, ClusterIP: "10.0.0.10"},
	}
}

func deployment(name string, labels, selector map[string]string, image string, ready int32) appsv1.Deployment {
	return appsv1.Deployment{
		ObjectMeta: meta(name, labels),
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To[int32](1),
			Selector: &metav1.LabelSelector{MatchLabels: selector},
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: image}}},
			},
		},
		Status: appsv1.DeploymentStatus{ReadyReplicas: ready},
	}
}

func statefulSet(name string, labels, selector map[string]string, image string, ready int32) appsv1.StatefulSet {
	return appsv1.StatefulSet{
		ObjectMeta: meta(name, labels),
		Spec: appsv1.StatefulSetSpec{
			Selector: &metav1.LabelSelector{MatchLabels: selector},
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: image}}},
			},
		},
		Status: appsv1.StatefulSetStatus{ReadyReplicas: ready},
	}
}

func pod(name string, labels map[string]string, phase corev1.PodPhase, claims ...string) corev1.Pod {
	p := corev1.Pod{
		ObjectMeta: meta(name, labels),
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "busybox:1.36"}}},
		Status:     corev1.PodStatus{Phase: phase},
	}
	for _, c := range claims {
		p.Spec.Volumes = append(p.Spec.Volumes, corev1.Volume{
			Name:         c,
			VolumeSource: corev1.VolumeSource{PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: c}},
		})
	}
	return p
}
